package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ChargeRequest is one STK push charge to a payer's phone.
type ChargeRequest struct {
	PhoneNumber      string // any local format; normalized before submission
	AmountCents      int64
	AccountReference string // shown on the payer's statement, e.g. booking reference
	TransactionDesc  string
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// ChargeResponse carries Daraja's correlation identifiers for one charge
// attempt. ResponseCode "0" means the prompt was pushed to the payer; any
// other code means the provider acknowledged but declined the request.
type ChargeResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

func (r *ChargeResponse) Accepted() bool { return r.ResponseCode == "0" }

const stkCallbackPath = "/api/payments/mpesa/callback"

// InitiateSTKPush submits a charge and returns the provider's reference pair
// verbatim. The caller persists the PENDING payment keyed by
// CheckoutRequestID. A *ChargeError is returned for transport failures and
// non-2xx responses; a 2xx with non-zero ResponseCode is returned as a
// normal response for the caller to record.
func (c *Client) InitiateSTKPush(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	timestamp := time.Now().Format("20060102150405")
	amount := c.cfg.EffectiveAmount(RoundCentsToShillings(req.AmountCents))
	phone := NormalizePhone(req.PhoneNumber)
	payload := stkPushPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          stkPassword(c.cfg.ShortCode, c.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerBuyGoodsOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.cfg.TillNumber,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackBaseURL + stkCallbackPath,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.TransactionDesc,
	}
	status, body, err := c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", payload)
	if err != nil {
		return nil, &ChargeError{Err: err}
	}
	logBody("stkpush", status, body)
	if status != http.StatusOK {
		return nil, &ChargeError{Status: status, Body: string(body)}
	}
	var out ChargeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &ChargeError{Status: status, Body: string(body)}
	}
	return &out, nil
}

// stkPassword is base64(shortcode || passkey || timestamp) per Daraja.
func stkPassword(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

type stkQueryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// QueryResponse is the stkpushquery result. ResultCode is only present once
// the charge has resolved; "0" is success, anything else a failure (1032 is
// user cancel). No receipt metadata is included on this endpoint.
type QueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// Resolved reports whether the charge has reached a final outcome. Daraja
// omits ResultCode while the STK prompt is still open on the payer's phone;
// an unresolved response must not be fed to the reconciler.
func (q *QueryResponse) Resolved() bool { return q.ResultCode != "" }

// QuerySTKStatus asks Daraja for the current state of a charge. Side-effect
// free; callers feed the result into the reconciler.
func (c *Client) QuerySTKStatus(ctx context.Context, checkoutRequestID string) (*QueryResponse, error) {
	timestamp := time.Now().Format("20060102150405")
	payload := stkQueryPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          stkPassword(c.cfg.ShortCode, c.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}
	status, body, err := c.postJSON(ctx, "/mpesa/stkpushquery/v1/query", payload)
	if err != nil {
		return nil, &ChargeError{Err: err}
	}
	logBody("stkquery", status, body)
	if status != http.StatusOK {
		return nil, &ChargeError{Status: status, Body: string(body)}
	}
	var out QueryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &ChargeError{Status: status, Body: string(body)}
	}
	return &out, nil
}

// STKCallback is Daraja's asynchronous webhook body for a charge.
type STKCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ChargeResult is the provider-neutral outcome fed to the reconciler, built
// either from the webhook callback or from a status query.
type ChargeResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	Success           bool
	ResultCode        string
	ResultDesc        string
	Receipt           string
	AmountKES         float64
	PhoneNumber       string
	PaidAt            time.Time
}

// ParseSTKCallback decodes the webhook body and extracts the receipt and
// paid-at metadata on success.
func ParseSTKCallback(body []byte) (*ChargeResult, error) {
	var cb STKCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("parse stk callback: %w", err)
	}
	stk := cb.Body.StkCallback
	res := &ChargeResult{
		CheckoutRequestID: stk.CheckoutRequestID,
		MerchantRequestID: stk.MerchantRequestID,
		Success:           stk.ResultCode == 0,
		ResultCode:        fmt.Sprintf("%d", stk.ResultCode),
		ResultDesc:        stk.ResultDesc,
	}
	if !res.Success {
		return res, nil
	}
	for _, item := range stk.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			if v, ok := item.Value.(float64); ok {
				res.AmountKES = v
			}
		case "MpesaReceiptNumber":
			if v, ok := item.Value.(string); ok {
				res.Receipt = v
			}
		case "PhoneNumber":
			switch v := item.Value.(type) {
			case string:
				res.PhoneNumber = v
			case float64:
				res.PhoneNumber = fmt.Sprintf("%.0f", v)
			}
		case "TransactionDate":
			// numeric YYYYMMDDHHmmss
			if v, ok := item.Value.(float64); ok {
				if t, err := time.ParseInLocation("20060102150405", fmt.Sprintf("%.0f", v), time.Local); err == nil {
					res.PaidAt = t
				}
			}
		}
	}
	if res.PaidAt.IsZero() {
		res.PaidAt = time.Now()
	}
	return res, nil
}

// ResultFromQuery maps a status-query response onto the same ChargeResult
// the webhook produces, so both paths share one reconciliation code path.
// The query endpoint never carries a receipt.
func ResultFromQuery(q *QueryResponse) *ChargeResult {
	return &ChargeResult{
		CheckoutRequestID: q.CheckoutRequestID,
		MerchantRequestID: q.MerchantRequestID,
		Success:           q.ResultCode == "0",
		ResultCode:        q.ResultCode,
		ResultDesc:        q.ResultDesc,
		PaidAt:            time.Now(),
	}
}

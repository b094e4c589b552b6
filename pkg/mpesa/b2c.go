package mpesa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// PayoutRequest is one B2C disbursement to a provider's phone. The caller
// generates and persists OriginatorConversationID before calling; Daraja
// deduplicates on it, which is what makes crash-retries safe.
type PayoutRequest struct {
	OriginatorConversationID string
	PhoneNumber              string
	AmountCents              int64
	Remarks                  string
	Occasion                 string
}

type b2cPayload struct {
	OriginatorConversationID string `json:"OriginatorConversationID"`
	InitiatorName            string `json:"InitiatorName"`
	SecurityCredential       string `json:"SecurityCredential"`
	CommandID                string `json:"CommandID"`
	Amount                   int64  `json:"Amount"`
	PartyA                   string `json:"PartyA"`
	PartyB                   string `json:"PartyB"`
	Remarks                  string `json:"Remarks"`
	QueueTimeOutURL          string `json:"QueueTimeOutURL"`
	ResultURL                string `json:"ResultURL"`
	Occasion                 string `json:"Occasion"`
}

type PayoutResponse struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}

func (r *PayoutResponse) Accepted() bool { return r.ResponseCode == "0" }

const (
	b2cResultPath  = "/api/payments/mpesa/b2c/result"
	b2cTimeoutPath = "/api/payments/mpesa/b2c/timeout"
)

// InitiateB2C submits a business-to-customer transfer. The outcome arrives
// asynchronously on the result URL and is reconciled like an STK callback.
func (c *Client) InitiateB2C(ctx context.Context, req PayoutRequest) (*PayoutResponse, error) {
	remarks := req.Remarks
	if remarks == "" {
		remarks = "Provider payout"
	}
	payload := b2cPayload{
		OriginatorConversationID: req.OriginatorConversationID,
		InitiatorName:            c.cfg.InitiatorName,
		SecurityCredential:       c.cfg.SecurityCredential,
		CommandID:                "BusinessPayment",
		Amount:                   RoundCentsToShillings(req.AmountCents),
		PartyA:                   c.cfg.ShortCode,
		PartyB:                   NormalizePhone(req.PhoneNumber),
		Remarks:                  remarks,
		QueueTimeOutURL:          c.cfg.CallbackBaseURL + b2cTimeoutPath,
		ResultURL:                c.cfg.CallbackBaseURL + b2cResultPath,
		Occasion:                 req.Occasion,
	}
	status, body, err := c.postJSON(ctx, "/mpesa/b2c/v3/paymentrequest", payload)
	if err != nil {
		return nil, &PayoutError{Err: err}
	}
	logBody("b2c", status, body)
	if status != http.StatusOK {
		return nil, &PayoutError{Status: status, Body: string(body)}
	}
	var out PayoutResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &PayoutError{Status: status, Body: string(body)}
	}
	return &out, nil
}

// B2CResultCallback is Daraja's asynchronous result body for a B2C transfer.
type B2CResultCallback struct {
	Result struct {
		ResultType               int    `json:"ResultType"`
		ResultCode               int    `json:"ResultCode"`
		ResultDesc               string `json:"ResultDesc"`
		OriginatorConversationID string `json:"OriginatorConversationID"`
		ConversationID           string `json:"ConversationID"`
		TransactionID            string `json:"TransactionID"`
		ResultParameters         struct {
			ResultParameter []struct {
				Key   string      `json:"Key"`
				Value interface{} `json:"Value"`
			} `json:"ResultParameter"`
		} `json:"ResultParameters"`
	} `json:"Result"`
}

// PayoutResult is the reconciler-facing outcome of a B2C transfer.
type PayoutResult struct {
	OriginatorConversationID string
	ConversationID           string
	Success                  bool
	ResultCode               string
	ResultDesc               string
	Receipt                  string
	AmountKES                float64
}

func ParseB2CResult(body []byte) (*PayoutResult, error) {
	var cb B2CResultCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("parse b2c result: %w", err)
	}
	res := &PayoutResult{
		OriginatorConversationID: cb.Result.OriginatorConversationID,
		ConversationID:           cb.Result.ConversationID,
		Success:                  cb.Result.ResultCode == 0,
		ResultCode:               fmt.Sprintf("%d", cb.Result.ResultCode),
		ResultDesc:               cb.Result.ResultDesc,
		Receipt:                  cb.Result.TransactionID,
	}
	for _, p := range cb.Result.ResultParameters.ResultParameter {
		switch p.Key {
		case "TransactionAmount":
			if v, ok := p.Value.(float64); ok {
				res.AmountKES = v
			}
		case "TransactionReceipt":
			if v, ok := p.Value.(string); ok {
				res.Receipt = v
			}
		}
	}
	return res, nil
}

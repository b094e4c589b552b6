package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jikonnect/config"
)

func stkTestServer(t *testing.T, capture *stkPushPayload, respond string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
		case "/mpesa/stkpush/v1/processrequest":
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Fatalf("decode push payload: %v", err)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
				t.Fatalf("Authorization = %q", auth)
			}
			w.Write([]byte(respond))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
}

func TestInitiateSTKPushPayload(t *testing.T) {
	var got stkPushPayload
	srv := stkTestServer(t, &got,
		`{"MerchantRequestID":"mr-1","CheckoutRequestID":"ws_CO_100","ResponseCode":"0","ResponseDescription":"Success","CustomerMessage":"Success"}`)
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.InitiateSTKPush(context.Background(), ChargeRequest{
		PhoneNumber:      "0712345678",
		AmountCents:      199960,
		AccountReference: "JK-abc12345",
		TransactionDesc:  "JiKonnect plumbing",
	})
	if err != nil {
		t.Fatalf("InitiateSTKPush: %v", err)
	}
	if !resp.Accepted() {
		t.Fatal("expected accepted response")
	}
	if resp.CheckoutRequestID != "ws_CO_100" {
		t.Fatalf("CheckoutRequestID = %q", resp.CheckoutRequestID)
	}

	if got.Amount != 2000 {
		t.Fatalf("Amount = %d, want 2000", got.Amount)
	}
	if got.PhoneNumber != "254712345678" || got.PartyA != "254712345678" {
		t.Fatalf("phone not normalized: %q / %q", got.PhoneNumber, got.PartyA)
	}
	if got.TransactionType != "CustomerBuyGoodsOnline" {
		t.Fatalf("TransactionType = %q", got.TransactionType)
	}
	if got.PartyB != "174379" {
		t.Fatalf("PartyB = %q", got.PartyB)
	}
	if !strings.HasSuffix(got.CallBackURL, stkCallbackPath) {
		t.Fatalf("CallBackURL = %q", got.CallBackURL)
	}
	raw, err := base64.StdEncoding.DecodeString(got.Password)
	if err != nil {
		t.Fatalf("password not base64: %v", err)
	}
	if want := "174379" + "passkey" + got.Timestamp; string(raw) != want {
		t.Fatalf("password decodes to %q, want %q", raw, want)
	}
	if _, err := time.Parse("20060102150405", got.Timestamp); err != nil {
		t.Fatalf("timestamp %q not YYYYMMDDHHmmss: %v", got.Timestamp, err)
	}
}

func TestInitiateSTKPushSandboxAmountOverride(t *testing.T) {
	var got stkPushPayload
	srv := stkTestServer(t, &got,
		`{"CheckoutRequestID":"ws_CO_101","ResponseCode":"0"}`)
	defer srv.Close()

	c := NewClient(config.MpesaConfig{
		Environment:      config.EnvSandbox,
		ConsumerKey:      "key",
		ConsumerSecret:   "secret",
		Passkey:          "passkey",
		ShortCode:        "174379",
		TillNumber:       "174379",
		SandboxAmountKES: 1,
	})
	c.baseURL = srv.URL
	if _, err := c.InitiateSTKPush(context.Background(), ChargeRequest{
		PhoneNumber: "0712345678",
		AmountCents: 500000,
	}); err != nil {
		t.Fatalf("InitiateSTKPush: %v", err)
	}
	if got.Amount != 1 {
		t.Fatalf("sandbox amount = %d, want override 1", got.Amount)
	}
}

func TestInitiateSTKPushDeclined(t *testing.T) {
	var got stkPushPayload
	srv := stkTestServer(t, &got,
		`{"MerchantRequestID":"mr-2","CheckoutRequestID":"ws_CO_102","ResponseCode":"1","ResponseDescription":"Unable to lock subscriber"}`)
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.InitiateSTKPush(context.Background(), ChargeRequest{
		PhoneNumber: "0712345678",
		AmountCents: 10000,
	})
	if err != nil {
		t.Fatalf("a 2xx decline must not be an error: %v", err)
	}
	if resp.Accepted() {
		t.Fatal("ResponseCode 1 must not be accepted")
	}
	if resp.CheckoutRequestID != "ws_CO_102" {
		t.Fatalf("CheckoutRequestID = %q", resp.CheckoutRequestID)
	}
}

func TestInitiateSTKPushHTTPErrorIsChargeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorCode":"400.002.02"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.InitiateSTKPush(context.Background(), ChargeRequest{PhoneNumber: "0712345678", AmountCents: 100})
	if err == nil {
		t.Fatal("expected error")
	}
	ce, ok := err.(*ChargeError)
	if !ok {
		t.Fatalf("expected *ChargeError, got %T", err)
	}
	if ce.Status != http.StatusBadRequest {
		t.Fatalf("Status = %d", ce.Status)
	}
}

func TestInitiateSTKPushAuthFailureSurfacesAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/v1/generate" {
			t.Fatalf("credential rejection must stop before the push, hit %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errorMessage":"Bad Request - Invalid Credentials"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.InitiateSTKPush(context.Background(), ChargeRequest{PhoneNumber: "0712345678", AmountCents: 100})
	if err == nil {
		t.Fatal("expected error")
	}
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("errors.As(*AuthError) = false for %T: %v", err, err)
	}
}

func TestInitiateSTKPushProductionIgnoresSandboxAmount(t *testing.T) {
	var got stkPushPayload
	srv := stkTestServer(t, &got,
		`{"CheckoutRequestID":"ws_CO_103","ResponseCode":"0"}`)
	defer srv.Close()

	c := NewClient(config.MpesaConfig{
		Environment:      config.EnvProduction,
		ConsumerKey:      "key",
		ConsumerSecret:   "secret",
		Passkey:          "passkey",
		ShortCode:        "174379",
		TillNumber:       "174379",
		SandboxAmountKES: 1,
	})
	c.baseURL = srv.URL
	if _, err := c.InitiateSTKPush(context.Background(), ChargeRequest{
		PhoneNumber: "0712345678",
		AmountCents: 199960,
	}); err != nil {
		t.Fatalf("InitiateSTKPush: %v", err)
	}
	if got.Amount != 2000 {
		t.Fatalf("production amount = %d, want the real 2000", got.Amount)
	}
}

func TestQueryResponseResolved(t *testing.T) {
	tests := []struct {
		name       string
		resultCode string
		want       bool
	}{
		{name: "prompt still open", resultCode: "", want: false},
		{name: "success", resultCode: "0", want: true},
		{name: "user cancel", resultCode: "1032", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &QueryResponse{ResponseCode: "0", ResultCode: tt.resultCode}
			if got := q.Resolved(); got != tt.want {
				t.Fatalf("Resolved() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSTKCallbackSuccess(t *testing.T) {
	body := []byte(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "mr-1",
				"CheckoutRequestID": "ws_CO_100",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 2000},
						{"Name": "MpesaReceiptNumber", "Value": "QGH12ABC3D"},
						{"Name": "TransactionDate", "Value": 20260830121530},
						{"Name": "PhoneNumber", "Value": 254712345678}
					]
				}
			}
		}
	}`)
	res, err := ParseSTKCallback(body)
	if err != nil {
		t.Fatalf("ParseSTKCallback: %v", err)
	}
	if !res.Success {
		t.Fatal("expected success")
	}
	if res.CheckoutRequestID != "ws_CO_100" {
		t.Fatalf("CheckoutRequestID = %q", res.CheckoutRequestID)
	}
	if res.Receipt != "QGH12ABC3D" {
		t.Fatalf("Receipt = %q", res.Receipt)
	}
	if res.AmountKES != 2000 {
		t.Fatalf("AmountKES = %v", res.AmountKES)
	}
	if res.PhoneNumber != "254712345678" {
		t.Fatalf("PhoneNumber = %q", res.PhoneNumber)
	}
	want := time.Date(2026, 8, 30, 12, 15, 30, 0, time.Local)
	if !res.PaidAt.Equal(want) {
		t.Fatalf("PaidAt = %v, want %v", res.PaidAt, want)
	}
}

func TestParseSTKCallbackFailure(t *testing.T) {
	body := []byte(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "mr-1",
				"CheckoutRequestID": "ws_CO_100",
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user"
			}
		}
	}`)
	res, err := ParseSTKCallback(body)
	if err != nil {
		t.Fatalf("ParseSTKCallback: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ResultCode != "1032" {
		t.Fatalf("ResultCode = %q", res.ResultCode)
	}
	if res.Receipt != "" {
		t.Fatalf("failure must not carry a receipt, got %q", res.Receipt)
	}
}

func TestParseSTKCallbackMalformed(t *testing.T) {
	if _, err := ParseSTKCallback([]byte(`not json at all`)); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestResultFromQuery(t *testing.T) {
	tests := []struct {
		name        string
		resultCode  string
		wantSuccess bool
	}{
		{name: "resolved success", resultCode: "0", wantSuccess: true},
		{name: "user cancel", resultCode: "1032", wantSuccess: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResultFromQuery(&QueryResponse{
				CheckoutRequestID: "ws_CO_100",
				ResultCode:        tt.resultCode,
				ResultDesc:        "desc",
			})
			if res.Success != tt.wantSuccess {
				t.Fatalf("Success = %v, want %v", res.Success, tt.wantSuccess)
			}
			if res.Receipt != "" {
				t.Fatal("query results never carry a receipt")
			}
			if res.CheckoutRequestID != "ws_CO_100" {
				t.Fatalf("CheckoutRequestID = %q", res.CheckoutRequestID)
			}
		})
	}
}

package mpesa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"jikonnect/config"
)

func testB2CConfig() config.MpesaConfig {
	return config.MpesaConfig{
		Environment:        config.EnvSandbox,
		ConsumerKey:        "key",
		ConsumerSecret:     "secret",
		ShortCode:          "174379",
		InitiatorName:      "apiops",
		SecurityCredential: "cred",
		CallbackBaseURL:    "https://example.test",
	}
}

func TestInitiateB2CPayload(t *testing.T) {
	var got b2cPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
		case "/mpesa/b2c/v3/paymentrequest":
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Fatalf("decode b2c payload: %v", err)
			}
			w.Write([]byte(`{"ConversationID":"AG_1","OriginatorConversationID":"174379_Payout_42_1","ResponseCode":"0","ResponseDescription":"Accept the service request successfully."}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(testB2CConfig())
	c.baseURL = srv.URL
	resp, err := c.InitiateB2C(context.Background(), PayoutRequest{
		OriginatorConversationID: "174379_Payout_42_1",
		PhoneNumber:              "0712345678",
		AmountCents:              180050,
		Occasion:                 "JK-abc12345",
	})
	if err != nil {
		t.Fatalf("InitiateB2C: %v", err)
	}
	if !resp.Accepted() {
		t.Fatal("expected accepted response")
	}
	if resp.ConversationID != "AG_1" {
		t.Fatalf("ConversationID = %q", resp.ConversationID)
	}

	if got.OriginatorConversationID != "174379_Payout_42_1" {
		t.Fatalf("OriginatorConversationID = %q", got.OriginatorConversationID)
	}
	if got.CommandID != "BusinessPayment" {
		t.Fatalf("CommandID = %q", got.CommandID)
	}
	if got.Amount != 1801 {
		t.Fatalf("Amount = %d, want 1801", got.Amount)
	}
	if got.PartyA != "174379" {
		t.Fatalf("PartyA = %q", got.PartyA)
	}
	if got.PartyB != "254712345678" {
		t.Fatalf("PartyB = %q", got.PartyB)
	}
	if got.InitiatorName != "apiops" {
		t.Fatalf("InitiatorName = %q", got.InitiatorName)
	}
	if got.Remarks == "" {
		t.Fatal("Remarks must default when empty")
	}
}

func TestParseB2CResultSuccess(t *testing.T) {
	body := []byte(`{
		"Result": {
			"ResultType": 0,
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"OriginatorConversationID": "174379_Payout_42_1",
			"ConversationID": "AG_1",
			"TransactionID": "QGH9XYZ",
			"ResultParameters": {
				"ResultParameter": [
					{"Key": "TransactionAmount", "Value": 1800},
					{"Key": "TransactionReceipt", "Value": "QGH9XYZ1AB"}
				]
			}
		}
	}`)
	res, err := ParseB2CResult(body)
	if err != nil {
		t.Fatalf("ParseB2CResult: %v", err)
	}
	if !res.Success {
		t.Fatal("expected success")
	}
	if res.OriginatorConversationID != "174379_Payout_42_1" {
		t.Fatalf("OriginatorConversationID = %q", res.OriginatorConversationID)
	}
	if res.Receipt != "QGH9XYZ1AB" {
		t.Fatalf("Receipt = %q, TransactionReceipt must win over TransactionID", res.Receipt)
	}
	if res.AmountKES != 1800 {
		t.Fatalf("AmountKES = %v", res.AmountKES)
	}
}

func TestParseB2CResultFailure(t *testing.T) {
	body := []byte(`{
		"Result": {
			"ResultType": 0,
			"ResultCode": 2001,
			"ResultDesc": "The initiator information is invalid.",
			"OriginatorConversationID": "174379_Payout_42_2",
			"ConversationID": "AG_2"
		}
	}`)
	res, err := ParseB2CResult(body)
	if err != nil {
		t.Fatalf("ParseB2CResult: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ResultCode != "2001" {
		t.Fatalf("ResultCode = %q", res.ResultCode)
	}
}

func TestParseB2CResultMalformed(t *testing.T) {
	if _, err := ParseB2CResult([]byte(`{{{`)); err == nil {
		t.Fatal("expected parse error")
	}
}

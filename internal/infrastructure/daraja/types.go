package daraja

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// STKPushRequest is the input for initiating a push payment. Phone must
// already be normalized to the 254XXXXXXXXX form and the amount is whole
// KES (Daraja rejects fractional amounts).
type STKPushRequest struct {
	Amount           int64
	PhoneNumber      string
	AccountReference string
	Description      string
}

// STKPushResponse is the provider acknowledgement of an accepted push.
type STKPushResponse struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResponseCode      string
	CustomerMessage   string
}

// StatusResponse is the provider's answer to a status query.
type StatusResponse struct {
	ResultCode int
	ResultDesc string
}

// stkPushPayload mirrors the Daraja processrequest body.
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

type stkPushResult struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

type statusQueryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type statusQueryResult struct {
	ResponseCode        string  `json:"ResponseCode"`
	ResponseDescription string  `json:"ResponseDescription"`
	ResultCode          flexInt `json:"ResultCode"`
	ResultDesc          string  `json:"ResultDesc"`
	ErrorCode           string  `json:"errorCode"`
	ErrorMessage        string  `json:"errorMessage"`
}

type tokenResult struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// flexInt tolerates Daraja's habit of sending result codes as either JSON
// numbers or strings depending on the endpoint.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// CallbackEnvelope mirrors the webhook JSON the provider posts to the
// callback URL.
type CallbackEnvelope struct {
	Body struct {
		STKCallback struct {
			MerchantRequestID string  `json:"MerchantRequestID"`
			CheckoutRequestID string  `json:"CheckoutRequestID"`
			ResultCode        flexInt `json:"ResultCode"`
			ResultDesc        string  `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string          `json:"Name"`
					Value json.RawMessage `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// CallbackData is the flattened form consumed by the callback handler.
type CallbackData struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     *string
	AmountCents       *int64
	PhoneNumber       *string
	TransactionDate   *time.Time
	Raw               []byte
}

// ParseCallback decodes a webhook payload, extracting the receipt metadata
// items on success callbacks.
func ParseCallback(payload []byte) (*CallbackData, error) {
	var env CallbackEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}

	cb := env.Body.STKCallback
	data := &CallbackData{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        int(cb.ResultCode),
		ResultDesc:        cb.ResultDesc,
		Raw:               payload,
	}

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			var s string
			if json.Unmarshal(item.Value, &s) == nil {
				data.ReceiptNumber = &s
			}
		case "Amount":
			var f float64
			if json.Unmarshal(item.Value, &f) == nil {
				cents := int64(math.Round(f * 100))
				data.AmountCents = &cents
			}
		case "PhoneNumber":
			var n json.Number
			if json.Unmarshal(item.Value, &n) == nil {
				s := n.String()
				data.PhoneNumber = &s
			}
		case "TransactionDate":
			var n json.Number
			if json.Unmarshal(item.Value, &n) == nil {
				if t, err := time.ParseInLocation("20060102150405", n.String(), time.Local); err == nil {
					data.TransactionDate = &t
				}
			}
		}
	}

	return data, nil
}

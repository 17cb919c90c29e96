package payments

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client talks to the Safaricom Daraja API (STK push). With DryRun set (or no
// consumer key configured) no HTTP call is made and a synthetic reference is
// returned; the payment service then auto-confirms after a fixed delay.
type Client struct {
	BaseURL     string
	ConsumerKey string
	Secret      string
	ShortCode   string
	Passkey     string
	CallbackURL string
	DryRun      bool

	http *http.Client
}

func NewClient(baseURL, consumerKey, secret, shortCode, passkey, callbackURL string, dryRun bool) *Client {
	return &Client{
		BaseURL:     baseURL,
		ConsumerKey: consumerKey,
		Secret:      secret,
		ShortCode:   shortCode,
		Passkey:     passkey,
		CallbackURL: callbackURL,
		DryRun:      dryRun,
		http:        &http.Client{Timeout: 10 * time.Second},
	}
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ErrorMessage        string `json:"errorMessage"`
}

// InitiateSTKPush starts an STK push towards the given phone and returns the
// gateway reference (CheckoutRequestID).
func (c *Client) InitiateSTKPush(phone, amount, accountRef string) (string, error) {
	if c.DryRun || c.ConsumerKey == "" {
		ref := "SIM-" + uuid.NewString()
		log.Printf("[mpesa][dry-run] stk push phone=%s amount=%s ref=%s", phone, amount, ref)
		return ref, nil
	}

	token, err := c.accessToken()
	if err != nil {
		return "", fmt.Errorf("mpesa auth: %w", err)
	}

	ts := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.ShortCode + c.Passkey + ts))

	reqBody := stkPushRequest{
		BusinessShortCode: c.ShortCode,
		Password:          password,
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.CallbackURL,
		AccountReference:  accountRef,
		TransactionDesc:   "EssayHub order payment",
	}
	b, _ := json.Marshal(reqBody)

	req, err := http.NewRequest("POST", c.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("stk push request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var result stkPushResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse stk response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || result.ResponseCode != "0" {
		log.Printf("[mpesa][stk][err] status=%d body=%s", resp.StatusCode, string(body))
		msg := result.ErrorMessage
		if msg == "" {
			msg = result.ResponseDescription
		}
		return "", fmt.Errorf("mpesa rejected stk push: %s", msg)
	}
	return result.CheckoutRequestID, nil
}

func (c *Client) accessToken() (string, error) {
	req, err := http.NewRequest("GET", c.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.ConsumerKey, c.Secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || tok.AccessToken == "" {
		return "", fmt.Errorf("token request failed: status=%d", resp.StatusCode)
	}
	return tok.AccessToken, nil
}

// STKCallback mirrors the Daraja webhook payload shape.
type STKCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

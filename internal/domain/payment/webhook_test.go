package payment

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name    string
		header  string
		secret  string
		wantErr bool
	}{
		{
			name:   "valid signature",
			header: SignatureHeader(payload, testSecret, now),
			secret: testSecret,
		},
		{
			name:   "one of several v1 values matches",
			header: SignatureHeader(payload, testSecret, now) + ",v1=deadbeef",
			secret: testSecret,
		},
		{
			name:    "wrong secret",
			header:  SignatureHeader(payload, "whsec_other", now),
			secret:  testSecret,
			wantErr: true,
		},
		{
			name:    "stale timestamp",
			header:  SignatureHeader(payload, testSecret, now.Add(-10*time.Minute)),
			secret:  testSecret,
			wantErr: true,
		},
		{
			name:    "missing timestamp",
			header:  "v1=abcdef",
			secret:  testSecret,
			wantErr: true,
		},
		{
			name:    "malformed header",
			header:  "garbage",
			secret:  testSecret,
			wantErr: true,
		},
		{
			name:    "non numeric timestamp",
			header:  "t=yesterday,v1=abcdef",
			secret:  testSecret,
			wantErr: true,
		},
		{
			name:    "empty header",
			header:  "",
			secret:  testSecret,
			wantErr: true,
		},
		{
			name:    "no secret configured",
			header:  SignatureHeader(payload, testSecret, now),
			secret:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(payload, tt.header, tt.secret, 5*time.Minute, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSignature)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestVerifySignature_TamperedPayload(t *testing.T) {
	now := time.Now()
	header := SignatureHeader([]byte(`{"amount":100}`), testSecret, now)

	err := VerifySignature([]byte(`{"amount":1}`), header, testSecret, time.Minute, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseEvent(t *testing.T) {
	event, err := ParseEvent([]byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","payment_intent":"pi_1"}}}`))
	require.NoError(t, err)

	assert.Equal(t, EventCheckoutCompleted, event.Type)
	session, err := event.CheckoutSession()
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, "pi_1", session.PaymentIntent)
}

func TestParseEvent_Invalid(t *testing.T) {
	for _, body := range []string{`not json`, `{"id":"evt_1"}`} {
		_, err := ParseEvent([]byte(body))
		assert.ErrorIs(t, err, ErrInvalidPayload, body)
	}

	event, err := ParseEvent([]byte(`{"id":"evt_1","type":"checkout.session.expired","data":{"object":{}}}`))
	require.NoError(t, err)
	_, err = event.CheckoutSession()
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func ExampleSignatureHeader() {
	header := SignatureHeader([]byte("{}"), "secret", time.Unix(1700000000, 0))
	fmt.Println(header[:13])
	// Output: t=1700000000,
}

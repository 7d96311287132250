package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/starford/noteshare/internal/apperr"
	"github.com/starford/noteshare/internal/testutil"
)

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *captureSender) SendCode(_ context.Context, phone, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.codes == nil {
		c.codes = make(map[string]string)
	}
	c.codes[phone] = code
	return nil
}

func (c *captureSender) last(phone string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[phone]
}

func testService(t *testing.T, opts ...Option) (*Service, *captureSender) {
	t.Helper()
	sender := &captureSender{}
	opts = append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)
	return NewService(testutil.TestDB(t), sender, "test-secret", opts...), sender
}

func TestPhoneFlow_CreatesUserOnce(t *testing.T) {
	svc, sender := testService(t)
	ctx := context.Background()
	const phone = "+15550100123"

	vid, err := svc.SendCode(ctx, phone)
	if err != nil {
		t.Fatalf("SendCode: %v", err)
	}
	code := sender.last(phone)
	if len(code) != 6 {
		t.Fatalf("code = %q, want 6 digits", code)
	}
	sess, err := svc.ConfirmCode(ctx, vid, code)
	if err != nil {
		t.Fatalf("ConfirmCode: %v", err)
	}
	if sess.User.Phone != phone || sess.Token == "" {
		t.Errorf("session = %+v", sess)
	}

	uid, err := svc.Verify(sess.Token)
	if err != nil || uid != sess.User.ID {
		t.Errorf("Verify = %q, %v", uid, err)
	}

	// The code is single use.
	if _, err := svc.ConfirmCode(ctx, vid, code); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("reuse err = %v", err)
	}

	// A second sign-in resolves to the same account.
	vid2, _ := svc.SendCode(ctx, phone)
	sess2, err := svc.ConfirmCode(ctx, vid2, sender.last(phone))
	if err != nil {
		t.Fatal(err)
	}
	if sess2.User.ID != sess.User.ID {
		t.Errorf("second sign-in created a new user %q", sess2.User.ID)
	}
}

func TestPhoneFlow_WrongCodeLimitsAttempts(t *testing.T) {
	svc, sender := testService(t)
	ctx := context.Background()
	const phone = "+15550100999"

	vid, _ := svc.SendCode(ctx, phone)
	for i := 0; i < defaultMaxAttempts; i++ {
		if _, err := svc.ConfirmCode(ctx, vid, "000000x"); !errors.Is(err, apperr.ErrUnauthorized) {
			t.Fatalf("attempt %d err = %v", i, err)
		}
	}
	if _, err := svc.ConfirmCode(ctx, vid, sender.last(phone)); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("correct code after too many attempts err = %v", err)
	}
}

func TestPhoneFlow_Expired(t *testing.T) {
	now := time.Now()
	svc, sender := testService(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	const phone = "+15550100777"

	vid, _ := svc.SendCode(ctx, phone)
	now = now.Add(defaultCodeTTL + time.Second)
	if _, err := svc.ConfirmCode(ctx, vid, sender.last(phone)); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expired code err = %v", err)
	}
}

func TestSendCode_InvalidPhone(t *testing.T) {
	svc, _ := testService(t)
	for _, phone := range []string{"not-a-phone", "555", "15551234567", "+0123456789", ""} {
		if _, err := svc.SendCode(context.Background(), phone); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("SendCode(%q) err = %v, want ErrInvalid", phone, err)
		}
	}
	if _, err := svc.SendCode(context.Background(), "+15551234567"); err != nil {
		t.Errorf("valid phone rejected: %v", err)
	}
}

func TestEmailFlow(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	sess, err := svc.SignUp(ctx, "Ada@Example.com", "hunter22", "Ada")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if sess.User.Email != "ada@example.com" {
		t.Errorf("email not normalised: %q", sess.User.Email)
	}
	if _, err := svc.SignUp(ctx, "ada@example.com", "another1", "Ada2"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate sign-up err = %v", err)
	}

	in, err := svc.SignIn(ctx, "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if in.User.ID != sess.User.ID {
		t.Error("sign-in returned a different user")
	}
	if _, err := svc.SignIn(ctx, "ada@example.com", "wrong-pass"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("wrong password err = %v", err)
	}
	if _, err := svc.SignIn(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("unknown email err = %v", err)
	}
}

func TestSignUp_Validation(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	cases := []struct{ email, password string }{
		{"", "hunter22"},
		{"not-an-email", "hunter22"},
		{"a@example.com", "123"},
	}
	for _, tc := range cases {
		if _, err := svc.SignUp(ctx, tc.email, tc.password, ""); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("SignUp(%q, %q) err = %v, want ErrInvalid", tc.email, tc.password, err)
		}
	}
}

func TestVerify_RejectsForeignTokens(t *testing.T) {
	svc, _ := testService(t)
	other := NewService(testutil.TestDB(t), &captureSender{}, "other-secret", WithBcryptCost(bcrypt.MinCost))
	sess, err := other.SignUp(context.Background(), "x@example.com", "hunter22", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Verify(sess.Token); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("foreign token err = %v", err)
	}
	if _, err := svc.Verify("garbage"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("garbage token err = %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	svc, _ := testService(t,
		WithClock(func() time.Time { return past }),
		WithTokenTTL(time.Hour))
	sess, err := svc.SignUp(context.Background(), "old@example.com", "hunter22", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Verify(sess.Token); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expired token err = %v", err)
	}
}

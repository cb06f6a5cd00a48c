package payment

import (
	"context"
	"errors"
	"testing"

	"marketplace-storefront/internal/domain"
)

func TestNormalizeProviderID(t *testing.T) {
	cases := map[string]string{
		"pp_stripe_stripe":    "stripe",
		"stripe":              "stripe",
		"PP_Stripe_Stripe":    "stripe",
		"pp_system_default":   "system_default",
		"pp_qr_bnb_qr_bnb":    "qr_bnb",
		"  pp_qr_simple  ":    "qr_simple",
		"pp_stripe-blik_blik": "stripe-blik_blik",
	}
	for in, want := range cases {
		if got := NormalizeProviderID(in); got != want {
			t.Fatalf("NormalizeProviderID(%q) = %q, want %q", in, got, want)
		}
	}
	if NormalizeProviderID("pp_stripe_stripe") != NormalizeProviderID("stripe") {
		t.Fatalf("module id and session provider id must compare equal")
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]Kind{
		"pp_stripe_stripe":  KindCard,
		"pp_qr_bnb":         KindQR,
		"pp_system_default": KindManual,
		"manual":            KindManual,
	}
	for id, want := range cases {
		got, err := Classify(id)
		if err != nil || got != want {
			t.Fatalf("Classify(%q) = %q, %v; want %q", id, got, err, want)
		}
	}
	if _, err := Classify("pp_paypal_paypal"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestEveryKindHasProvider(t *testing.T) {
	for _, k := range []Kind{KindCard, KindQR, KindManual} {
		p, err := ProviderFor(k)
		if err != nil || p.Kind() != k {
			t.Fatalf("ProviderFor(%q) = %v, %v", k, p, err)
		}
	}
	if _, err := ProviderFor("crypto"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestCanContinue(t *testing.T) {
	card := &domain.PaymentSession{ProviderID: "pp_stripe_stripe", Status: domain.SessionPending}
	if CanContinue(card, false) {
		t.Fatalf("card must wait for complete card entry")
	}
	if !CanContinue(card, true) {
		t.Fatalf("complete card entry should allow continuing")
	}
	qr := &domain.PaymentSession{ProviderID: "pp_qr_bnb", Status: domain.SessionPending}
	if !CanContinue(qr, false) {
		t.Fatalf("qr should not depend on card entry")
	}
	if CanContinue(nil, true) {
		t.Fatalf("no session cannot continue")
	}
	failed := &domain.PaymentSession{ProviderID: "pp_system_default", Status: domain.SessionError}
	if CanContinue(failed, true) {
		t.Fatalf("errored session cannot continue")
	}
}

func TestCardFinalizeSuccessClass(t *testing.T) {
	p := cardProvider{}
	for _, status := range []string{"succeeded", "requires_capture", "processing", "SUCCEEDED"} {
		if err := p.Finalize(context.Background(), &domain.Cart{}, FinalizeInput{ConfirmationStatus: status}); err != nil {
			t.Fatalf("%s: expected success, got %v", status, err)
		}
	}
	for _, status := range []string{"", "requires_payment_method", "canceled"} {
		if err := p.Finalize(context.Background(), &domain.Cart{}, FinalizeInput{ConfirmationStatus: status}); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%q: expected rejection, got %v", status, err)
		}
	}
}

func TestQRInitiateCarriesAmount(t *testing.T) {
	cart := &domain.Cart{Currency: "bob", Totals: domain.Totals{Total: 4200}}
	data, err := qrProvider{}.Initiate(context.Background(), cart)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if data["amount"] != int64(4200) || data["currency_code"] != "bob" {
		t.Fatalf("unexpected data %v", data)
	}
	if _, err := (qrProvider{}).Initiate(context.Background(), &domain.Cart{}); err == nil {
		t.Fatalf("expected error for zero total")
	}
}

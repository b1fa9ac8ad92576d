package session

import (
	"errors"
	"testing"

	"signal-bot/internal/domain"
)

func TestUnauthenticatedRejectsEverythingButAccessCode(t *testing.T) {
	s := &Session{}

	checks := map[string]error{
		"select_pair":   s.SelectPair(domain.PairEURUSD),
		"select_expiry": s.SelectExpiry(domain.Expiry5s),
		"back":          s.Back(),
	}
	_, _, checks["repeat"] = s.Repeat()
	_, _, checks["manual"] = s.Manual()

	for name, err := range checks {
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s: expected invalid transition, got %v", name, err)
		}
		if reason, _ := ReasonOf(err); reason != domain.ReasonNotAuthorized {
			t.Fatalf("%s: expected not_authorized, got %q", name, reason)
		}
	}
	if s.State() != Unauthenticated || *s != (Session{}) {
		t.Fatalf("expected untouched session, got %+v", s)
	}
}

func TestSubmitAccessCode(t *testing.T) {
	s := &Session{}

	already, err := s.SubmitAccessCode(false)
	if !errors.Is(err, ErrUnauthorizedCode) || already {
		t.Fatalf("expected unauthorized code error, got already=%v err=%v", already, err)
	}
	if s.State() != Unauthenticated {
		t.Fatalf("expected unauthenticated after bad code, got %s", s.State())
	}

	already, err = s.SubmitAccessCode(true)
	if err != nil || already {
		t.Fatalf("expected fresh grant, got already=%v err=%v", already, err)
	}
	if s.State() != Authenticated {
		t.Fatalf("expected authenticated, got %s", s.State())
	}

	already, err = s.SubmitAccessCode(false)
	if err != nil || !already {
		t.Fatalf("expected already-authorized notice, got already=%v err=%v", already, err)
	}
	if s.State() != Authenticated {
		t.Fatalf("resubmission must not change state, got %s", s.State())
	}
}

func TestSelectExpiryBeforePairIsRejected(t *testing.T) {
	s := &Session{Authenticated: true}

	err := s.SelectExpiry(domain.Expiry1m)
	if reason, ok := ReasonOf(err); !ok || reason != domain.ReasonSelectPairFirst {
		t.Fatalf("expected select_pair_first, got %v", err)
	}
	if s.Expiry != "" {
		t.Fatalf("expected expiry to stay unset, got %s", s.Expiry)
	}
}

func TestHappyPathTransitions(t *testing.T) {
	s := &Session{Authenticated: true}

	if err := s.SelectPair(domain.PairGBPUSD); err != nil {
		t.Fatalf("select pair: %v", err)
	}
	if s.State() != PairSelected {
		t.Fatalf("expected pair_selected, got %s", s.State())
	}
	if err := s.SelectExpiry(domain.Expiry2m); err != nil {
		t.Fatalf("select expiry: %v", err)
	}
	if s.State() != ExpirySelected {
		t.Fatalf("expected expiry_selected, got %s", s.State())
	}

	pair, expiry, err := s.Repeat()
	if err != nil || pair != domain.PairGBPUSD || expiry != domain.Expiry2m {
		t.Fatalf("unexpected repeat result: %s %s %v", pair, expiry, err)
	}
	pair, expiry, err = s.Manual()
	if err != nil || pair != domain.PairGBPUSD || expiry != domain.Expiry2m {
		t.Fatalf("unexpected manual result: %s %s %v", pair, expiry, err)
	}
	if s.State() != ExpirySelected {
		t.Fatalf("repeat/manual must not change state, got %s", s.State())
	}

	// a new pair restarts expiry selection
	if err := s.SelectPair(domain.PairEURJPY); err != nil {
		t.Fatalf("reselect pair: %v", err)
	}
	if s.State() != PairSelected || s.Expiry != "" {
		t.Fatalf("expected pair_selected with no expiry, got %+v", s)
	}
}

func TestInvalidSelectionsAreRejected(t *testing.T) {
	s := &Session{Authenticated: true}
	if reason, _ := ReasonOf(s.SelectPair("BTCUSD")); reason != domain.ReasonUnknownPair {
		t.Fatalf("expected unknown_pair, got %q", reason)
	}
	s.Pair = domain.PairEURUSD
	if reason, _ := ReasonOf(s.SelectExpiry("7m")); reason != domain.ReasonUnknownExpiry {
		t.Fatalf("expected unknown_expiry, got %q", reason)
	}
	if s.State() != PairSelected {
		t.Fatalf("expected state unchanged, got %s", s.State())
	}
}

func TestRepeatRequiresExpiry(t *testing.T) {
	s := &Session{Authenticated: true, Pair: domain.PairEURUSD}
	_, _, err := s.Repeat()
	if reason, _ := ReasonOf(err); reason != domain.ReasonSelectExpiryFirst {
		t.Fatalf("expected select_expiry_first, got %v", err)
	}
}

func TestManualRequiresSelection(t *testing.T) {
	s := &Session{Authenticated: true, Pair: domain.PairEURUSD}
	_, _, err := s.Manual()
	if reason, _ := ReasonOf(err); reason != domain.ReasonSelectPairFirst {
		t.Fatalf("expected select_pair_first, got %v", err)
	}
}

func TestBackClearsSelectionAndPending(t *testing.T) {
	s := &Session{Authenticated: true, Pair: domain.PairEURUSD, Expiry: domain.Expiry3m, PendingRequestID: "req-1"}

	if err := s.Back(); err != nil {
		t.Fatalf("back: %v", err)
	}
	if s.State() != Authenticated || s.Pair != "" || s.Expiry != "" || s.PendingRequestID != "" {
		t.Fatalf("expected cleared selection, got %+v", s)
	}

	err := s.SelectExpiry(domain.Expiry3m)
	if reason, _ := ReasonOf(err); reason != domain.ReasonSelectPairFirst {
		t.Fatalf("expected select_pair_first after back, got %v", err)
	}

	if reason, _ := ReasonOf(s.Back()); reason != domain.ReasonNothingToLeave {
		t.Fatalf("expected nothing_to_go_back_from, got %q", reason)
	}
}

func TestSelectPairDropsPendingRequest(t *testing.T) {
	s := &Session{Authenticated: true, Pair: domain.PairEURUSD, Expiry: domain.Expiry2m, PendingRequestID: "req-1"}

	if err := s.SelectPair(domain.PairGBPUSD); err != nil {
		t.Fatalf("select pair: %v", err)
	}
	if s.State() != PairSelected || s.Pair != domain.PairGBPUSD || s.Expiry != "" || s.PendingRequestID != "" {
		t.Fatalf("expected fresh selection without pending request, got %+v", s)
	}
	if s.Claim("req-1") {
		t.Fatal("request for the previous pair must not be claimable")
	}

	bad := &Session{Authenticated: true, Pair: domain.PairEURUSD, PendingRequestID: "req-2"}
	if err := bad.SelectPair("BTCUSD"); err == nil {
		t.Fatal("expected unknown pair rejection")
	}
	if bad.PendingRequestID != "req-2" {
		t.Fatal("rejected selection must leave the pending request untouched")
	}
}

func TestSupersedeAndClaim(t *testing.T) {
	s := &Session{Authenticated: true}

	if prev := s.Supersede("a"); prev != "" {
		t.Fatalf("expected no previous request, got %s", prev)
	}
	if prev := s.Supersede("b"); prev != "a" {
		t.Fatalf("expected previous request a, got %s", prev)
	}
	if s.Claim("a") {
		t.Fatal("superseded request must not be claimable")
	}
	if !s.IsPending("b") {
		t.Fatal("expected b to be pending")
	}
	if !s.Claim("b") {
		t.Fatal("expected live request to be claimed")
	}
	if s.Claim("b") {
		t.Fatal("a request can only be claimed once")
	}
	if s.IsPending("") {
		t.Fatal("empty id is never pending")
	}
}

func TestStateString(t *testing.T) {
	if ExpirySelected.String() != "expiry_selected" || State(9).String() != "state(9)" {
		t.Fatalf("unexpected state names: %s %s", ExpirySelected, State(9))
	}
}

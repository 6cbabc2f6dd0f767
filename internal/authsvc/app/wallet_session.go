package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"

	"github.com/authplatform/auth-service/internal/domain"
)

// walletPassPayload is the ephemeral record a sibling wallet service stages
// under wallet_pass_token:{token} before redirecting a device here to be
// bound to a session (§4.6's wallet-session path).
type walletPassPayload struct {
	UserID          string `json:"user_id"`
	FingerprintHash string `json:"fingerprint_hash"`
	Browser         string `json:"browser"`
	Device          string `json:"device"`
}

func walletPassTokenKey(token string) string {
	return "wallet_pass_token:" + token
}

// CreateWalletSession redeems a wallet_pass_token minted by the wallet
// service, locates or creates-and-trusts the fingerprint it embeds, and
// creates a session bound to it with app="decode by wallet". callerUserAgent
// must match the wallet service's expected identity — any other caller is
// rejected outright, since this path bypasses password and device-trust
// checks on the strength of the service token alone.
func (s *AuthService) CreateWalletSession(ctx context.Context, token, callerUserAgent string) (SessionWithAccess, error) {
	ctx, span := tracer.Start(ctx, "auth.session.create_wallet_session")
	defer span.End()

	if s.walletServiceUserAgent == "" || callerUserAgent != s.walletServiceUserAgent {
		span.SetStatus(codes.Error, "unexpected caller")
		return SessionWithAccess{}, fmt.Errorf("create wallet session: %w", domain.ErrForbidden)
	}

	var payload walletPassPayload
	if err := s.ephemeral.GetAndDelete(ctx, walletPassTokenKey(token), &payload); err != nil {
		if domain.IsNotFound(err) {
			return SessionWithAccess{}, fmt.Errorf("create wallet session: %w", domain.ErrUnauthorized)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionWithAccess{}, fmt.Errorf("create wallet session: %w", err)
	}

	fingerprint, err := s.fingerprints.FindByHash(ctx, payload.UserID, payload.FingerprintHash)
	if err != nil {
		if !domain.IsNotFound(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return SessionWithAccess{}, fmt.Errorf("create wallet session: locate fingerprint: %w", err)
		}
		fingerprint, err = s.fingerprints.CreateUntrusted(ctx, domain.GenerateFingerprintID().String(),
			payload.UserID, payload.FingerprintHash, payload.Browser, payload.Device)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return SessionWithAccess{}, fmt.Errorf("create wallet session: create fingerprint: %w", err)
		}
	}
	if !fingerprint.IsTrusted {
		if err := s.fingerprints.SetTrusted(ctx, fingerprint.FingerprintID, true); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return SessionWithAccess{}, fmt.Errorf("create wallet session: trust fingerprint: %w", err)
		}
	}

	session, err := s.Create(ctx, payload.UserID, fingerprint.FingerprintID, "decode by wallet")
	if err != nil {
		return SessionWithAccess{}, fmt.Errorf("create wallet session: %w", err)
	}
	return session, nil
}

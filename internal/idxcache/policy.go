package idxcache

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/metafam/metagame/internal/model"
)

// ErrUnverifiedLink はアカウント連携の証明を検証できなかった場合のエラー。
var ErrUnverifiedLink = errors.New("unverified account link")

// LinkClaim はalsoKnownAsドキュメントが主張する1件のアカウント連携。
type LinkClaim struct {
	PlayerID     string
	DID          string
	Type         model.AccountType
	Identifier   string
	Attestations []model.Attestation
}

// LinkPolicy はアカウント連携をplayer_accountへ書き込んでよいかを判定する。
type LinkPolicy interface {
	Authorize(ctx context.Context, claim LinkClaim) error
}

// DestructiveReassignment は主張をそのまま受け入れるポリシー。
// 既に別プレイヤーに紐付いたアカウントも現在のプレイヤーへ付け替えられる。
type DestructiveReassignment struct{}

var _ LinkPolicy = DestructiveReassignment{}

// Authorize は常に許可する。
func (DestructiveReassignment) Authorize(context.Context, LinkClaim) error {
	return nil
}

// VerifiedClaimPolicy は信頼する発行者が署名したdid-jwt-vcを要求するポリシー。
// 証明のsubがプレイヤーのDIDと一致し、credentialSubject.accountが
// 主張と同じアカウントを指す場合のみ許可する。
type VerifiedClaimPolicy struct {
	issuer string
	key    crypto.PublicKey
}

var _ LinkPolicy = (*VerifiedClaimPolicy)(nil)

// NewVerifiedClaimPolicy はPEM形式のEd25519公開鍵からポリシーを生成する。
func NewVerifiedClaimPolicy(issuer string, publicKeyPEM []byte) (*VerifiedClaimPolicy, error) {
	if issuer == "" {
		return nil, errors.New("attestation issuer is required")
	}
	key, err := jwt.ParseEdPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("証明用公開鍵の読み込みに失敗しました: %w", err)
	}
	return &VerifiedClaimPolicy{issuer: issuer, key: key}, nil
}

// credentialClaims はアカウント連携VCのクレーム。
type credentialClaims struct {
	VC struct {
		CredentialSubject struct {
			ID      string `json:"id"`
			Account struct {
				Type     string `json:"type"`
				Username string `json:"username"`
			} `json:"account"`
		} `json:"credentialSubject"`
	} `json:"vc"`
	jwt.RegisteredClaims
}

// Authorize はいずれかの証明が検証できれば許可する。
func (p *VerifiedClaimPolicy) Authorize(_ context.Context, claim LinkClaim) error {
	if claim.DID == "" {
		return fmt.Errorf("%w: DIDがありません", ErrUnverifiedLink)
	}

	lastErr := errors.New("証明がありません")
	for _, a := range claim.Attestations {
		if a.DIDJWTVC == "" {
			continue
		}
		if err := p.verify(a.DIDJWTVC, claim); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %s %s: %v", ErrUnverifiedLink, claim.Type, claim.Identifier, lastErr)
}

func (p *VerifiedClaimPolicy) verify(token string, claim LinkClaim) error {
	var claims credentialClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return p.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithSubject(claim.DID),
	)
	if err != nil {
		return err
	}

	account := claims.VC.CredentialSubject.Account
	if NormalizeAccountType(account.Type) != claim.Type {
		return fmt.Errorf("account type mismatch: %q", account.Type)
	}
	if !strings.EqualFold(account.Username, claim.Identifier) {
		return fmt.Errorf("account username mismatch: %q", account.Username)
	}
	return nil
}

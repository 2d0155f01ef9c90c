// Package approval verifies the off-chain signed, time-boxed approval
// messages that gate taking restricted offers. A message binds one user to
// one program identity until an expiry instant and is signed by one of the
// registered approver keys.
package approval

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrExpired          = errors.New("approval expired")
	ErrWrongProgram     = errors.New("approval bound to a different program")
	ErrWrongUser        = errors.New("approval bound to a different user")
	ErrUnknownApprover  = errors.New("approval signer is not a registered approver")
	ErrBadSignature     = errors.New("approval signature verification failed")
	ErrMalformedMessage = errors.New("malformed approval envelope")
)

// Message is the signed payload. Serialization is borsh so the byte layout
// matches what approvers sign off-chain.
type Message struct {
	Program    solana.PublicKey
	User       solana.PublicKey
	ExpiryUnix int64
}

// Bytes returns the canonical signing bytes of the message.
func (m Message) Bytes() ([]byte, error) {
	data, err := bin.MarshalBorsh(&m)
	if err != nil {
		return nil, fmt.Errorf("encode approval message: %w", err)
	}
	return data, nil
}

// Envelope carries a message plus its signatures. Exactly one signature is
// permitted; anything else is malformed input rather than a
// first-valid-wins lookup.
type Envelope struct {
	Message    Message
	Signatures []solana.Signature
	Signer     solana.PublicKey
}

// Verifier checks envelopes against the two registered approver keys.
type Verifier struct {
	approvers [2]solana.PublicKey
}

// NewVerifier registers the approver pair.
func NewVerifier(primary, secondary solana.PublicKey) *Verifier {
	return &Verifier{approvers: [2]solana.PublicKey{primary, secondary}}
}

// Verify checks shape, expiry, binding, signer registration, and the ed25519
// signature, in that order.
func (v *Verifier) Verify(env Envelope, expectedUser, expectedProgram solana.PublicKey, now int64) error {
	if len(env.Signatures) != 1 {
		return fmt.Errorf("%w: expected exactly 1 signature, got %d", ErrMalformedMessage, len(env.Signatures))
	}
	if now > env.Message.ExpiryUnix {
		return fmt.Errorf("%w: expiry %d, now %d", ErrExpired, env.Message.ExpiryUnix, now)
	}
	if !env.Message.Program.Equals(expectedProgram) {
		return ErrWrongProgram
	}
	if !env.Message.User.Equals(expectedUser) {
		return ErrWrongUser
	}
	if !env.Signer.Equals(v.approvers[0]) && !env.Signer.Equals(v.approvers[1]) {
		return fmt.Errorf("%w: %s", ErrUnknownApprover, env.Signer)
	}

	payload, err := env.Message.Bytes()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if !ed25519.Verify(env.Signer[:], payload, env.Signatures[0][:]) {
		return ErrBadSignature
	}
	return nil
}

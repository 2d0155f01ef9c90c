package approval

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	program  solana.PublicKey
	user     solana.PublicKey
	approver solana.PrivateKey
	other    solana.PrivateKey
	verifier *Verifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	approver, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	secondary, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	other, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	return fixture{
		program:  solana.NewWallet().PublicKey(),
		user:     solana.NewWallet().PublicKey(),
		approver: approver,
		other:    other,
		verifier: NewVerifier(approver.PublicKey(), secondary.PublicKey()),
	}
}

func (f fixture) signedEnvelope(t *testing.T, signer solana.PrivateKey, msg Message) Envelope {
	t.Helper()
	payload, err := msg.Bytes()
	require.NoError(t, err)
	sig, err := signer.Sign(payload)
	require.NoError(t, err)
	return Envelope{
		Message:    msg,
		Signatures: []solana.Signature{sig},
		Signer:     signer.PublicKey(),
	}
}

func TestVerifyAccepts(t *testing.T) {
	f := newFixture(t)
	now := int64(1_700_000_000)
	env := f.signedEnvelope(t, f.approver, Message{
		Program:    f.program,
		User:       f.user,
		ExpiryUnix: now + 600,
	})

	require.NoError(t, f.verifier.Verify(env, f.user, f.program, now))
	// Boundary: expiry instant itself is still valid.
	require.NoError(t, f.verifier.Verify(env, f.user, f.program, now+600))
}

func TestVerifyExpired(t *testing.T) {
	f := newFixture(t)
	now := int64(1_700_000_000)
	env := f.signedEnvelope(t, f.approver, Message{
		Program:    f.program,
		User:       f.user,
		ExpiryUnix: now - 1,
	})

	assert.ErrorIs(t, f.verifier.Verify(env, f.user, f.program, now), ErrExpired)
}

func TestVerifyWrongBinding(t *testing.T) {
	f := newFixture(t)
	now := int64(1_700_000_000)
	msg := Message{Program: f.program, User: f.user, ExpiryUnix: now + 600}
	env := f.signedEnvelope(t, f.approver, msg)

	assert.ErrorIs(t, f.verifier.Verify(env, f.user, solana.NewWallet().PublicKey(), now), ErrWrongProgram)
	assert.ErrorIs(t, f.verifier.Verify(env, solana.NewWallet().PublicKey(), f.program, now), ErrWrongUser)
}

func TestVerifyUnknownApprover(t *testing.T) {
	f := newFixture(t)
	now := int64(1_700_000_000)
	env := f.signedEnvelope(t, f.other, Message{
		Program:    f.program,
		User:       f.user,
		ExpiryUnix: now + 600,
	})

	assert.ErrorIs(t, f.verifier.Verify(env, f.user, f.program, now), ErrUnknownApprover)
}

func TestVerifyForgedSignature(t *testing.T) {
	f := newFixture(t)
	now := int64(1_700_000_000)
	env := f.signedEnvelope(t, f.other, Message{
		Program:    f.program,
		User:       f.user,
		ExpiryUnix: now + 600,
	})
	// Claiming a registered signer does not help without their key.
	env.Signer = f.approver.PublicKey()

	assert.ErrorIs(t, f.verifier.Verify(env, f.user, f.program, now), ErrBadSignature)
}

func TestVerifySignatureCountStrict(t *testing.T) {
	f := newFixture(t)
	now := int64(1_700_000_000)
	msg := Message{Program: f.program, User: f.user, ExpiryUnix: now + 600}
	env := f.signedEnvelope(t, f.approver, msg)

	none := env
	none.Signatures = nil
	assert.ErrorIs(t, f.verifier.Verify(none, f.user, f.program, now), ErrMalformedMessage)

	double := env
	double.Signatures = append([]solana.Signature{env.Signatures[0]}, env.Signatures[0])
	assert.ErrorIs(t, f.verifier.Verify(double, f.user, f.program, now), ErrMalformedMessage)
}

func TestMessageBytesDeterministic(t *testing.T) {
	f := newFixture(t)
	msg := Message{Program: f.program, User: f.user, ExpiryUnix: 42}
	first, err := msg.Bytes()
	require.NoError(t, err)
	second, err := msg.Bytes()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	// 32 + 32 + 8 borsh bytes.
	assert.Len(t, first, 72)
}

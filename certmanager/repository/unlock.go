package repository

import (
	"context"
	"fmt"

	"github.com/avast/retry-go/v4"
	"github.com/awnumar/memguard"
	"github.com/pkg/errors"
	"github.com/whitekid/goxp/log"

	"fsca/certmanager/provider"
	"fsca/certmanager/store"
	"fsca/certmanager/types"
	"fsca/pkg/helper/x509x"
)

// Prompter reads a password interactively
type Prompter interface {
	Password(ctx context.Context, label string) ([]byte, error)
}

// PrompterFunc adapts function to Prompter
type PrompterFunc func(ctx context.Context, label string) ([]byte, error)

func (f PrompterFunc) Password(ctx context.Context, label string) ([]byte, error) { return f(ctx, label) }

// Unlocker loads the root private key
type Unlocker interface {
	Unlock(ctx context.Context) (x509x.PrivateKey, error)
}

type UnlockOptions struct {
	Name     string // root key name in store
	Password []byte // tried first without prompting, may be empty
	Attempts uint   // max prompts, 0 for unlimited
}

// NewUnlocker create unlocker: the configured password is tried first, then the prompter is asked
// until the key decrypts, the attempts are exhausted or the prompter fails.
func NewUnlocker(p provider.Interface, s store.Interface, prompter Prompter, opts UnlockOptions) Unlocker {
	return &unlockerImpl{
		provider: p,
		store:    s,
		prompter: prompter,
		opts:     opts,
	}
}

type unlockerImpl struct {
	provider provider.Interface
	store    store.Interface
	prompter Prompter
	opts     UnlockOptions
}

var _ Unlocker = (*unlockerImpl)(nil)

func (u *unlockerImpl) Unlock(ctx context.Context) (x509x.PrivateKey, error) {
	keyPEM, err := u.store.ReadKey(ctx, u.opts.Name)
	if err != nil {
		return nil, errors.Wrap(err, "fail to unlock root key")
	}

	label := fmt.Sprintf("Enter password for %s%s: ", u.opts.Name, store.KeyExt)
	prompted := false

	key, err := retry.DoWithData(
		func() (x509x.PrivateKey, error) {
			password := u.opts.Password
			if prompted {
				if err := ctx.Err(); err != nil {
					return nil, retry.Unrecoverable(err)
				}

				p, err := u.prompter.Password(ctx, label)
				if err != nil {
					return nil, retry.Unrecoverable(errors.Wrap(err, "fail to read password"))
				}
				defer memguard.WipeBytes(p)
				password = p
			}
			prompted = true

			return u.provider.DecodePrivateKey(ctx, keyPEM, password)
		},
		retry.Context(ctx),
		retry.Attempts(u.attempts()),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, types.ErrWrongPassword) }),
		retry.OnRetry(func(n uint, err error) { log.Debugf("unlock %s: attempt %d failed: %v", u.opts.Name, n+1, err) }),
	)
	if err != nil {
		return nil, errors.Wrap(err, "fail to unlock root key")
	}

	return key, nil
}

// attempts returns total tries including the configured password
func (u *unlockerImpl) attempts() uint {
	if u.opts.Attempts == 0 {
		return 0
	}
	return u.opts.Attempts + 1
}

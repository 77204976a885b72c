// Package keyprovider resolves the pre-shared key an EncryptedStream needs
// to derive its master key, trying each source the original format
// supports in turn (spec.md §4.9).
package keyprovider

import "os"

// EnvVar is the environment variable checked before any other source.
const EnvVar = "FIF_PSK"

// Prompter is implemented by anything that can interactively collect a
// passphrase from an operator. Tests and library callers that have no
// terminal supply a canned Prompter instead of the real one.
type Prompter interface {
	Prompt() (string, error)
}

// PrompterFunc adapts a plain function to Prompter.
type PrompterFunc func() (string, error)

func (f PrompterFunc) Prompt() (string, error) { return f() }

// Resolve returns the pre-shared key to use, in priority order:
//  1. the FIF_PSK environment variable
//  2. propertyPSK, the 'PSK' properties value if the caller already
//     extracted one (the caller is responsible for deleting it from the
//     properties afterward so it is never persisted to disk)
//  3. prompt, if non-nil
//
// Resolve returns ok=false if none of the sources yielded a key.
func Resolve(propertyPSK string, prompt Prompter) (psk string, ok bool, err error) {
	if v, present := os.LookupEnv(EnvVar); present && v != "" {
		return v, true, nil
	}
	if propertyPSK != "" {
		return propertyPSK, true, nil
	}
	if prompt != nil {
		v, err := prompt.Prompt()
		if err != nil {
			return "", false, err
		}
		if v != "" {
			return v, true, nil
		}
	}
	return "", false, nil
}

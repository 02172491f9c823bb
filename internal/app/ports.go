package app

import "context"

// KVStore is the local key-value persistence boundary. Get reports found=false for absent keys.
type KVStore interface {
	Get(context.Context, string) ([]byte, bool, error)
	Set(context.Context, string, []byte) error
}

/*
Copyright (c) 2023 Purple Clay

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package gitpoller

import "context"

const cursorStateKey = "lastRev"
const cursorStateClass = "GitPoller"

// StateStore is the persistent keyed store backing the cursor. Keys are
// scoped by (name, class), mirroring the host service's general-purpose
// state API
type StateStore interface {
	GetState(ctx context.Context, name, class, key string) (map[string]string, bool, error)
	SetState(ctx context.Context, name, class, key string, value map[string]string) error
}

// cursor is the in-memory branch-key -> sha mapping, the sole source of
// truth for what has already been reported downstream
type cursor struct {
	values map[string]string
}

// loadCursor reads the persisted lastRev map for name, defaulting to an
// empty cursor when nothing has been persisted yet
func loadCursor(ctx context.Context, store StateStore, name string) (cursor, error) {
	if store == nil {
		return cursor{values: map[string]string{}}, nil
	}

	values, ok, err := store.GetState(ctx, name, cursorStateClass, cursorStateKey)
	if err != nil {
		return cursor{}, err
	}
	if !ok || values == nil {
		values = map[string]string{}
	}
	return cursor{values: values}, nil
}

// snapshot returns a defensive copy of the cursor's current values, to be
// used as the stable exclude-list basis while this poll computes updates
func (c cursor) snapshot() map[string]string {
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// get returns the stored value for a branch key
func (c cursor) get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// persistCursor replaces the cursor's stored state with next and writes it to
// the state store. Keys absent from next are dropped, which is how
// branches no longer being polled fall out of the persisted cursor
func persistCursor(ctx context.Context, store StateStore, name string, next map[string]string) error {
	if store == nil {
		return nil
	}
	return store.SetState(ctx, name, cursorStateClass, cursorStateKey, next)
}

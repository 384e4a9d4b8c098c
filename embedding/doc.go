// Package embedding abstracts vector embedding backends behind the
// Gateway interface. The OpenAI implementation calls the embeddings
// API; the static implementation hashes tokens into a fixed-size vector
// for offline and test use. Backend outages surface as ErrUnavailable
// so the caller can degrade to keyword-only search instead of failing.
package embedding

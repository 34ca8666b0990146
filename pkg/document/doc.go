// Package document defines the immutable document value that flows through the
// synthesis engine, together with the content hashing used to chain every
// transformation.
//
// A Document is never mutated in place. Every transformation produces a new
// value through WithText, and every transition is identified by the SHA-256
// digest of the full document text:
//
//	doc := document.New(text, document.Metadata{DocumentType: "promotion"})
//	before := doc.Hash()
//	next := doc.WithText(rewritten)
//	after := next.Hash()
package document

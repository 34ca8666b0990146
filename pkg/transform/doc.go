// Package transform applies a resolved remediation plan to a document.
//
// Each remediation produces a CorrectionRecord holding only the edits it
// made (offset, removed text, inserted text), a confidence score, and the
// content hashes of the whole document before and after. Replaying the
// edits of a run against the input text reproduces every intermediate
// document, which is what the determinism guard verifies.
//
// Supported strategies:
//
//   - suggestion_extraction: the gate's suggested fix (or the template body)
//     placed at the insertion point
//   - regex_replacement: every match of the template pattern replaced with the
//     rendered body
//   - template_insertion: the rendered body placed at the insertion point
//   - structural_reorganization: the template's section moved to (or created
//     at) the insertion point
//
// A remediation whose text already sits at its insertion point, or whose
// result is byte-identical to its input, is recorded with an empty delta.
package transform

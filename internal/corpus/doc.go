// Package corpus provides the text transformations run by the batch pipeline:
// whitelist cleaning, grapheme substitution and word counting.
//
// Each transformation is exposed as an engine.WorkFunc built from immutable
// data (a whitelist set, a substitution table, a tokenizer), so workers can
// share it without locking. Text is segmented into extended grapheme clusters,
// so a base letter and its combining marks are kept or dropped together.
package corpus

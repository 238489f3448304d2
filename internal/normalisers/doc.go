// Package normalisers extracts text from uploaded files. Each subpackage
// handles specific MIME types; the Registry dispatches to the
// highest-priority normaliser for a file, inferring the MIME type from the
// filename extension when the caller does not supply one.
package normalisers

// Package html extracts readable text from HTML uploads. Scripts, styles
// and comments are dropped, block elements become line breaks and list
// items keep a "- " bullet.
package html

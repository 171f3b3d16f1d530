// Package parser parses the text protocol spoken by the TCP front end and
// the kv command of the CLI. See Parse for the grammar.
package parser

// Package util holds small parsing and formatting helpers shared by config
// and logging code.
package util

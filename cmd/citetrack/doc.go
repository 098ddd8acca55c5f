// Command citetrack tracks URLs and drives them through the linking
// pipeline against a local reference manager.
package main

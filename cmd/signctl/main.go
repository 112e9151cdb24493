// Command signctl is the operator tool for the signing service: offline
// artifact verification, CPF and protocol code checks, and access tokens.
package main

func main() {
	Execute()
}

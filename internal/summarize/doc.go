// Package summarize persists file and function summaries produced by an
// external text service.
//
// The service itself (LLM calls, prompt construction) is out of scope; the
// Runner only decides what still needs a summary for a given commit, calls
// the service with retry, and stores the result. No store transaction is
// held across a service call.
package summarize

// Package event turns authenticated Slack Events API bodies into typed envelopes
// and pulls the user's question out of an app_mention.
//
// Classification never fails: anything that is not a challenge or an answerable
// mention becomes an Other envelope so the endpoint keeps acknowledging the
// platform with 200.
package event

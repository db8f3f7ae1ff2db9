// Package main hosts the darkroom administration CLI.
//
// The Cobra-based command tree covers the operator-side surface of the bot:
// minting and listing redemption keys, inspecting and adjusting the account
// ledger, and configuration scaffolding. The daemon owns the live queue;
// everything here works directly against the configuration and the ledger
// database, so the commands stay usable whether or not darkroomd is running.
package main

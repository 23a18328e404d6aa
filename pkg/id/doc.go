// Package id provides 128-bit, lexicographically sortable identifiers used to
// order processed events. An ID embeds the assignment time, so a descending
// scan over ID-keyed records yields most-recently-processed first.
package id

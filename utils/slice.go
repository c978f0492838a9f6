package utils

import "strings"

// UniqueEmails lowercases, trims and de-duplicates addresses, keeping first-seen order.
func UniqueEmails(list []string) []string {
	keys := make(map[string]bool)
	out := []string{}
	for _, entry := range list {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" || keys[entry] {
			continue
		}
		keys[entry] = true
		out = append(out, entry)
	}
	return out
}

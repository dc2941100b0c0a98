package utils

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

/*
	Common

	Some commonly used functions in corsgate

*/

// Send a plain text response with the given status code
func SendPlainTextResponse(w http.ResponseWriter, statusCode int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	w.Write([]byte(msg))
}

// Check if given string in a given slice
func StringInArray(arr []string, str string) bool {
	for _, a := range arr {
		if a == str {
			return true
		}
	}
	return false
}

// SplitList split a comma separated list, trimming spaces and
// dropping empty entries
func SplitList(list string) []string {
	results := []string{}
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		results = append(results, item)
	}
	return results
}

// ParseKeyValueList parse "key:value,key2:value2" into a map.
// Entries without a colon are ignored
func ParseKeyValueList(list string) map[string]string {
	results := map[string]string{}
	for _, item := range SplitList(list) {
		key, value, found := strings.Cut(item, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		results[key] = strings.TrimSpace(value)
	}
	return results
}

// Check if the listening address is valid, e.g. "0.0.0.0:8080" or ":8080"
func ValidateListeningAddress(address string) bool {
	_, port, err := net.SplitHostPort(address)
	if err != nil {
		return false
	}
	portNumber, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return portNumber >= 0 && portNumber <= 65535
}

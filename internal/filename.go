/*
 * Copyright 2021 National Library of Norway.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *       http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


// Package internal contains helpers for naming WARC files.
package internal

import (
	"fmt"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
)

const unknown = "unknown"

// FormatNamed formats like fmt.Sprintf, but verbs name their argument in params,
// e.g. "%{prefix}s-%05{serial}d". Names missing from params are left in place.
func FormatNamed(format string, params map[string]any) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	slices.Sort(names)

	var args []any
	for _, name := range names {
		placeholder := "{" + name + "}"
		if !strings.Contains(format, placeholder) {
			continue
		}
		args = append(args, params[name])
		format = strings.ReplaceAll(format, placeholder, "["+strconv.Itoa(len(args))+"]")
	}
	return fmt.Sprintf(format, args...)
}

// OutboundIP returns the local address used for outgoing traffic, or "unknown".
// No packets are sent.
func OutboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return unknown
	}
	defer func() { _ = conn.Close() }()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return unknown
}

// HostName returns the host name reported by the kernel, or "unknown".
func HostName() string {
	host, err := os.Hostname()
	if err != nil {
		return unknown
	}
	return host
}

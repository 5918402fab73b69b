// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package nmea encodes NMEA 0183 sentences.
package nmea

import (
	"fmt"
	"strings"
)

type Sentence struct {
	Type string
	Data []string
}

func checksum(s string) string {
	var sum uint8
	for i := 0; i < len(s); i++ {
		sum ^= s[i]
	}

	return fmt.Sprintf("%02X", sum)
}

func (s Sentence) String() string {
	var b strings.Builder
	b.WriteString(s.Type)
	for _, d := range s.Data {
		b.WriteByte(',')
		b.WriteString(d)
	}
	if len(s.Data) == 0 {
		// always make sure the type is followed by a comma if there is no data
		b.WriteByte(',')
	}

	body := b.String()
	return "$" + body + "*" + checksum(body)
}

func (s Sentence) Bytes() []byte {
	return []byte(s.String())
}

// Line is the sentence as sent on the wire, CR LF terminated.
func (s Sentence) Line() []byte {
	return []byte(s.String() + "\r\n")
}

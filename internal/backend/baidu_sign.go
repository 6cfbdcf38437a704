package backend

import (
	"fmt"
	"strconv"
	"strings"
)

// Mixing programs of the Baidu query signature. Each triple is
// (add|xor, shift right|left, shift amount in base 36).
const (
	baiduRoundMix = "+-a^+6"
	baiduFinalMix = "+-3^+b+-f"
)

// BaiduSign computes the sign parameter of a Baidu web translation request
// from the query and the page's gtk value ("<n1>.<n2>"). Arithmetic follows
// 32-bit two's complement.
func BaiduSign(query, gtk string) string {
	n1, n2 := splitGTK(gtk)

	hash := n1
	for _, b := range []byte(baiduSignInput(query)) {
		hash += int64(b)
		hash = baiduMix(hash, baiduRoundMix)
	}
	hash = baiduMix(hash, baiduFinalMix)
	hash = int64(toInt32(hash) ^ toInt32(n2))
	if hash < 0 {
		hash = (hash & 0x7fffffff) + 2147483648
	}
	hash %= 1000000

	return fmt.Sprintf("%d.%d", hash, toInt32(hash)^toInt32(n1))
}

// baiduSignInput shortens queries of more than 30 characters to their first,
// middle and last ten characters. Characters outside the BMP are counted
// once; any of them directly following another such character or starting
// the text is dropped from the shortened form.
func baiduSignInput(query string) string {
	runes := []rune(query)

	astral := false
	for _, r := range runes {
		if r > 0xFFFF {
			astral = true
			break
		}
	}

	chars := runes
	if astral {
		chars = chars[:0:0]
		var seg []rune
		var pending []rune
		flush := func(last bool) {
			if len(seg) > 0 {
				chars = append(chars, seg...)
				if !last {
					chars = append(chars, pending[len(pending)-1])
				}
			}
			seg = seg[:0]
		}
		for _, r := range runes {
			if r > 0xFFFF {
				pending = append(pending, r)
				flush(false)
				continue
			}
			seg = append(seg, r)
		}
		flush(true)
	}

	n := len(chars)
	if n <= 30 {
		return query
	}
	var sb strings.Builder
	sb.WriteString(string(chars[:10]))
	sb.WriteString(string(chars[n/2-5 : n/2+5]))
	sb.WriteString(string(chars[n-10:]))
	return sb.String()
}

func baiduMix(hash int64, program string) int64 {
	for i := 0; i+2 < len(program); i += 3 {
		c := program[i+2]
		var d int64
		if c >= 'a' {
			d = int64(c) - 87
		} else {
			d = int64(c - '0')
		}

		if program[i+1] == '+' {
			d = int64(uint32(hash) >> d)
		} else {
			d = int64(toInt32(int64(uint32(hash) << d)))
		}

		if program[i] == '+' {
			hash = int64(toInt32(hash + d))
		} else {
			hash = int64(toInt32(hash) ^ toInt32(d))
		}
	}
	return hash
}

func splitGTK(gtk string) (int64, int64) {
	first, second, _ := strings.Cut(gtk, ".")
	n1, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		n1 = 0
	}
	n2, err := strconv.ParseInt(second, 10, 64)
	if err != nil {
		n2 = 0
	}
	return n1, n2
}

func toInt32(v int64) int32 {
	return int32(uint32(v))
}

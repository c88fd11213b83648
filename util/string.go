package util

import (
	"fmt"
	"strings"
)

// JoinString joins the String() forms of elems with sep
func JoinString[A fmt.Stringer](elems []A, sep string) string {
	sb := strings.Builder{}
	for i, elem := range elems {
		if i != 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(elem.String())
	}
	return sb.String()
}

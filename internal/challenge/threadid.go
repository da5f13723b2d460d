// SPDX-License-Identifier: MIT

package challenge

import (
	"fmt"
	"regexp"
)

// threadIDPattern matches the trailing numeric segment of a Discord thread
// or channel URL.
var threadIDPattern = regexp.MustCompile(`/(\d+)$`)

// ExtractThreadID pulls the thread ID out of a Discord URL such as
// https://discord.com/channels/<guild>/<channel>/threads/<id>. The ID stays a
// string: Discord snowflakes exceed 2^53 and have no business being numbers.
func ExtractThreadID(url string) (string, error) {
	m := threadIDPattern.FindStringSubmatch(url)
	if m == nil {
		return "", fmt.Errorf("no thread ID in URL %q", url)
	}
	return m[1], nil
}

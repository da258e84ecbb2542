package cache

// Match reports whether key matches a Redis-style glob pattern:
// '*' any run, '?' one byte, '[abc]' / '[^a-z]' classes, '\' escapes.
// It mirrors the matcher Redis applies for SCAN MATCH and KEYS so the memory
// store deletes exactly what the Redis store would.
func Match(pattern, key string) bool {
	p, k := 0, 0
	starP, starK := -1, 0

	for k < len(key) {
		if p < len(pattern) {
			switch pattern[p] {
			case '*':
				for p < len(pattern) && pattern[p] == '*' {
					p++
				}
				if p == len(pattern) {
					return true
				}
				starP, starK = p, k
				continue
			case '?':
				p++
				k++
				continue
			case '[':
				if next, ok := matchClass(pattern, p, key[k]); ok {
					p = next
					k++
					continue
				}
			case '\\':
				if p+1 < len(pattern) && pattern[p+1] == key[k] {
					p += 2
					k++
					continue
				}
			default:
				if pattern[p] == key[k] {
					p++
					k++
					continue
				}
			}
		}
		if starP < 0 {
			return false
		}
		starK++
		p, k = starP, starK
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// matchClass evaluates the class starting at pattern[start] == '[' against c.
// It returns the index after the closing bracket and whether c matched.
func matchClass(pattern string, start int, c byte) (int, bool) {
	i := start + 1
	negate := false
	if i < len(pattern) && pattern[i] == '^' {
		negate = true
		i++
	}

	matched := false
	for i < len(pattern) && pattern[i] != ']' {
		lo := pattern[i]
		if lo == '\\' && i+1 < len(pattern) {
			i++
			lo = pattern[i]
		}
		hi := lo
		if i+2 < len(pattern) && pattern[i+1] == '-' && pattern[i+2] != ']' {
			hi = pattern[i+2]
			if hi == '\\' && i+3 < len(pattern) {
				i++
				hi = pattern[i+2]
			}
			i += 2
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		if c >= lo && c <= hi {
			matched = true
		}
		i++
	}
	if i >= len(pattern) {
		// Unterminated class: Redis treats the rest as the class body.
		return i, matched != negate
	}
	return i + 1, matched != negate
}

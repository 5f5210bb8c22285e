package console

// isSGRMouseSequence detects SGR mouse escape sequences that may leak
// through as key input (e.g. "<65;38;21M") when mouse cell motion tracking
// is enabled.
func isSGRMouseSequence(s string) bool {
	if len(s) < 5 || s[0] != '<' {
		return false
	}
	last := s[len(s)-1]
	if last != 'M' && last != 'm' {
		return false
	}
	return digitsAndSemicolons(s[1 : len(s)-1])
}

// isMouseEscapeLeak covers the SGR, X11 and URXVT mouse formats.
func isMouseEscapeLeak(s string) bool {
	if isSGRMouseSequence(s) {
		return true
	}
	if len(s) >= 2 && s[0] == '[' && (s[1] == 'M' || s[1] == 'm') {
		return true
	}
	return len(s) >= 5 && s[0] == '[' && s[len(s)-1] == 'M' && digitsAndSemicolons(s[1:len(s)-1])
}

func digitsAndSemicolons(s string) bool {
	for _, r := range s {
		if r != ';' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

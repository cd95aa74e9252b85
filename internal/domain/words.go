package domain

// ParseWords validates a decoded JSON value and returns it as a list of words.
//
// A missing value, a non-list or an empty list is rejected with EmptyInput;
// a list holding anything but strings is rejected with NonStringElement.
func ParseWords(input any) ([]string, error) {
	switch v := input.(type) {
	case []string:
		if len(v) == 0 {
			return nil, NewValidationError(EmptyInput)
		}
		return append([]string(nil), v...), nil
	case []any:
		if len(v) == 0 {
			return nil, NewValidationError(EmptyInput)
		}
		words := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, NewValidationError(NonStringElement)
			}
			words = append(words, s)
		}
		return words, nil
	default:
		return nil, NewValidationError(EmptyInput)
	}
}

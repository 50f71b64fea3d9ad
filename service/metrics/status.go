package metrics

// StatusFromError maps an error to the "success"/"error" label used across collectors.
func StatusFromError(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

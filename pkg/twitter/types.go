package twitter

// Account is the subset of the user object returned by credential checks
type Account struct {
	ID         string `json:"id_str"`
	ScreenName string `json:"screen_name"`
	Name       string `json:"name"`
}

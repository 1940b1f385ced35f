package cart

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

var ErrShareUnavailable = errors.New("share link unavailable")

// ShareLink builds the URL a recipient opens to merge a shared cart.
func ShareLink(baseURL, accessToken string) (string, error) {
	if accessToken == "" {
		return "", ErrShareUnavailable
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/cart/shared")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", accessToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SaveForLater emails the cart and returns the share link from the
// response's access token.
func (s *Store) SaveForLater(ctx context.Context, email string, createAccountPrompt bool, shareBaseURL string) (string, error) {
	resp, err := s.EmailCart(ctx, email, createAccountPrompt)
	if err != nil {
		return "", err
	}
	return ShareLink(shareBaseURL, resp.AccessToken)
}

package session

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
)

// CookiePrefix is prepended to the unit UID to name a token cookie.
const CookiePrefix = "house_token_"

/*
CookieStore keeps tokens as cookies for the portal origin. The jar can be
handed to an http.Client so the token cookie travels with API requests.
*/
type CookieStore struct {
	jar    *cookiejar.Jar
	origin *url.URL
}

func NewCookieStore(origin string) (*CookieStore, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parsing cookie origin: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("cookie origin %q must be http or https", origin)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &CookieStore{jar: jar, origin: u}, nil
}

// Jar returns the underlying cookie jar.
func (c *CookieStore) Jar() http.CookieJar {
	return c.jar
}

func (c *CookieStore) Get(unitUID string) (string, bool, error) {
	name := CookiePrefix + unitUID
	for _, ck := range c.jar.Cookies(c.origin) {
		if ck.Name == name {
			return ck.Value, true, nil
		}
	}
	return "", false, nil
}

func (c *CookieStore) Set(unitUID, token string) error {
	c.jar.SetCookies(c.origin, []*http.Cookie{{
		Name:     CookiePrefix + unitUID,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.origin.Scheme == "https",
	}})
	return nil
}

func (c *CookieStore) Delete(unitUID string) error {
	c.expire(CookiePrefix + unitUID)
	return nil
}

func (c *CookieStore) Clear() error {
	for _, ck := range c.jar.Cookies(c.origin) {
		if strings.HasPrefix(ck.Name, CookiePrefix) {
			c.expire(ck.Name)
		}
	}
	return nil
}

func (c *CookieStore) expire(name string) {
	c.jar.SetCookies(c.origin, []*http.Cookie{{
		Name:   name,
		Path:   "/",
		MaxAge: -1,
	}})
}

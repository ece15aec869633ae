package http

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/cwygoda/feedgrab/internal/domain"
)

type sourceDTO struct {
	Source string `json:"source"`
}

type mediaDTO struct {
	ID      int64     `json:"id"`
	Type    string    `json:"type"`
	CanView bool      `json:"canView"`
	Source  sourceDTO `json:"source"`
}

type postDTO struct {
	ID              int64      `json:"id"`
	PostedAtPrecise string     `json:"postedAtPrecise"`
	CanViewMedia    bool       `json:"canViewMedia"`
	Media           []mediaDTO `json:"media"`
}

type apiErrorDTO struct {
	Message string `json:"message"`
}

type userDTO struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Username string       `json:"username"`
	RawAbout string       `json:"rawAbout"`
	JoinDate string       `json:"joinDate"`
	Website  string       `json:"website"`
	Wishlist string       `json:"wishlist"`
	Location string       `json:"location"`
	LastSeen string       `json:"lastSeen"`
	Error    *apiErrorDTO `json:"error"`
}

// API implements domain.API over a Client.
type API struct {
	c *Client
}

// NewAPI creates an API on top of c.
func NewAPI(c *Client) *API {
	return &API{c: c}
}

// Posts fetches one page of a feed endpoint.
func (a *API) Posts(ctx context.Context, endpoint string, limit int, before string) ([]domain.Post, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if before != "" {
		params.Set("beforePublishTime", before)
	}

	var page []postDTO
	if err := a.c.Get(ctx, endpoint, params, &page); err != nil {
		return nil, err
	}

	posts := make([]domain.Post, len(page))
	for i, p := range page {
		posts[i] = toPost(p)
	}
	return posts, nil
}

// User resolves a profile by handle; "me" is the authenticated user.
func (a *API) User(ctx context.Context, handle string) (*domain.Profile, error) {
	var u userDTO
	if err := a.c.Get(ctx, "/users/"+handle, nil, &u); err != nil {
		return nil, err
	}
	if u.Error != nil {
		return nil, fmt.Errorf("%s: %s: %w", handle, u.Error.Message, domain.ErrProfileNotFound)
	}
	return &domain.Profile{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.Username,
		About:    u.RawAbout,
		JoinDate: u.JoinDate,
		Website:  u.Website,
		Wishlist: u.Wishlist,
		Location: u.Location,
		LastSeen: u.LastSeen,
	}, nil
}

// AsUser returns an API whose requests carry the user-id header.
func (a *API) AsUser(userID int64) domain.API {
	return &API{c: a.c.With(map[string]string{HeaderUserID: strconv.FormatInt(userID, 10)})}
}

func toPost(p postDTO) domain.Post {
	media := make([]domain.Media, len(p.Media))
	for i, m := range p.Media {
		media[i] = domain.Media{
			ID:      m.ID,
			Kind:    domain.ParseMediaKind(m.Type),
			Source:  m.Source.Source,
			CanView: m.CanView,
		}
	}
	return domain.Post{
		ID:              p.ID,
		PostedAtPrecise: p.PostedAtPrecise,
		CanViewMedia:    p.CanViewMedia,
		Media:           media,
	}
}

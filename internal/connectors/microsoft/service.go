package microsoft

import (
	"context"
	"fmt"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// DefaultGraphScope requests every Graph permission consented to the backend app.
const DefaultGraphScope = "https://graph.microsoft.com/.default"

// UserInfo contains the user's basic profile information from Microsoft Graph.
type UserInfo struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// GetUserInfo fetches the profile of the user the token was issued for.
func (s *MailFolderSource) GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	endpoint := s.baseURL + "/me?$select=id,displayName,mail,userPrincipalName"

	var userInfo UserInfo
	if err := s.pager.GetJSON(ctx, endpoint, accessToken, &userInfo); err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}

	return &userInfo, nil
}

// GetUserEmail returns the user's email address.
// Falls back to userPrincipalName if mail is not set.
func (u *UserInfo) GetUserEmail() string {
	if u.Mail != "" {
		return u.Mail
	}
	return u.UserPrincipalName
}

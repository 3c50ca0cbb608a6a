// Package microsoft talks to Microsoft Graph and the Microsoft identity platform
// on behalf of the mailbox usage service.
//
// This package provides:
//   - A pager that follows @odata.nextLink until a collection is exhausted
//   - A mail-folder source listing top-level and child folders
//   - A confidential-client factory for on-behalf-of token exchange (MSAL)
//   - An unverified JWT claims inspector used for tenant routing
//   - Error mapping for Graph responses
//
// # Pagination
//
// Graph collections are returned as pages of the form
//
//	{ "value": [...], "@odata.nextLink": "https://graph.microsoft.com/..." }
//
// The next link is absolute and already carries every query parameter, so it is
// requested verbatim. Pages are fetched one after another and accumulated in
// order; a failed page discards everything fetched so far.
//
// # Mail folders
//
//   - Top level: /me/mailFolders
//   - Children: /me/mailFolders/{id}/childFolders
//
// Graph caps $top at 1000 for mailFolders.
//
// # On-behalf-of
//
// Each tenant gets its own confidential client with authority
// {authorityHost}/{tenantID}. The inbound user token is the assertion and the
// requested scope is normally https://graph.microsoft.com/.default.
package microsoft

// Package vkapi contains a minimal VK API client for the conversation bot:
// sending and deleting messages, managing chat members, and receiving events
// through the user long poll. Raw wire payloads never leave this package;
// callers see typed structs and Event values only.
package vkapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.vk.com/method"
	apiVersion     = "5.131"

	// PeerChatOffset separates group-chat peer ids from private dialogs.
	PeerChatOffset = 2000000000
)

// APIError is the error payload VK returns in place of a response.
type APIError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}

// Client calls VK API methods with a group access token.
type Client struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client

	// randomID generates the deduplication id for messages.send;
	// overridable in tests.
	randomID func() int64
}

func New(token string) *Client {
	return &Client{Token: token}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

func (c *Client) nextRandomID() int64 {
	if c.randomID != nil {
		return c.randomID()
	}
	return time.Now().UnixMilli()
}

// call performs one API request and decodes the {response}|{error} envelope.
func (c *Client) call(ctx context.Context, method string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", c.Token)
	params.Set("v", apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+"/"+method,
		strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http().Do(req)
	if err != nil {
		return fmt.Errorf("vk %s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Response json.RawMessage `json:"response"`
		Error    *APIError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("vk %s: decode: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("vk %s: %w", method, envelope.Error)
	}
	if out != nil && len(envelope.Response) > 0 {
		if err := json.Unmarshal(envelope.Response, out); err != nil {
			return fmt.Errorf("vk %s: decode response: %w", method, err)
		}
	}
	return nil
}

// SendMessage posts text to a peer and returns the new message id.
func (c *Client) SendMessage(ctx context.Context, peerID int64, text string) (int64, error) {
	params := url.Values{}
	params.Set("peer_id", strconv.FormatInt(peerID, 10))
	params.Set("message", text)
	params.Set("random_id", strconv.FormatInt(c.nextRandomID(), 10))
	var id int64
	if err := c.call(ctx, "messages.send", params, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// SendReply posts text as a reply to an existing message.
func (c *Client) SendReply(ctx context.Context, peerID, replyToID int64, text string) (int64, error) {
	params := url.Values{}
	params.Set("peer_id", strconv.FormatInt(peerID, 10))
	params.Set("message", text)
	params.Set("reply_to", strconv.FormatInt(replyToID, 10))
	params.Set("random_id", strconv.FormatInt(c.nextRandomID(), 10))
	var id int64
	if err := c.call(ctx, "messages.send", params, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteMessage removes a message for everyone.
func (c *Client) DeleteMessage(ctx context.Context, messageID int64) error {
	params := url.Values{}
	params.Set("message_ids", strconv.FormatInt(messageID, 10))
	params.Set("delete_for_all", "1")
	return c.call(ctx, "messages.delete", params, nil)
}

// RemoveChatUser kicks a member from the chat behind the peer id.
func (c *Client) RemoveChatUser(ctx context.Context, peerID, memberID int64) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(peerID-PeerChatOffset, 10))
	params.Set("member_id", strconv.FormatInt(memberID, 10))
	var result int
	if err := c.call(ctx, "messages.removeChatUser", params, &result); err != nil {
		return err
	}
	if result != 1 {
		return fmt.Errorf("vk messages.removeChatUser: unexpected result %d", result)
	}
	return nil
}

// Member is one conversation member with its admin flag.
type Member struct {
	MemberID int64 `json:"member_id"`
	IsAdmin  bool  `json:"is_admin"`
}

// Profile is the display data VK returns alongside member lists.
type Profile struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	ScreenName string `json:"screen_name"`
}

// Members is the response of messages.getConversationMembers.
type Members struct {
	Items    []Member  `json:"items"`
	Profiles []Profile `json:"profiles"`
}

// GetConversationMembers fetches the full member list of a chat.
func (c *Client) GetConversationMembers(ctx context.Context, peerID int64) (*Members, error) {
	params := url.Values{}
	params.Set("peer_id", strconv.FormatInt(peerID, 10))
	var out Members
	if err := c.call(ctx, "messages.getConversationMembers", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetChatTitle fetches the chat title for logging at startup.
func (c *Client) GetChatTitle(ctx context.Context, peerID int64) (string, error) {
	params := url.Values{}
	params.Set("peer_ids", strconv.FormatInt(peerID, 10))
	var out struct {
		Items []struct {
			ChatSettings struct {
				Title string `json:"title"`
			} `json:"chat_settings"`
		} `json:"items"`
	}
	if err := c.call(ctx, "messages.getConversationsById", params, &out); err != nil {
		return "", err
	}
	if len(out.Items) == 0 {
		return "", fmt.Errorf("vk messages.getConversationsById: conversation %d not found", peerID)
	}
	return out.Items[0].ChatSettings.Title, nil
}

// GetGroup resolves the group the token belongs to.
func (c *Client) GetGroup(ctx context.Context) (int64, string, error) {
	var out []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := c.call(ctx, "groups.getById", nil, &out); err != nil {
		return 0, "", err
	}
	if len(out) == 0 {
		return 0, "", fmt.Errorf("vk groups.getById: empty response")
	}
	return out[0].ID, out[0].Name, nil
}

// GetUsers resolves user ids or screen names to profiles.
func (c *Client) GetUsers(ctx context.Context, ids []string) ([]Profile, error) {
	params := url.Values{}
	params.Set("user_ids", strings.Join(ids, ","))
	params.Set("fields", "screen_name")
	var out []Profile
	if err := c.call(ctx, "users.get", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkAsRead marks the whole conversation as read.
func (c *Client) MarkAsRead(ctx context.Context, peerID int64) error {
	params := url.Values{}
	params.Set("peer_id", strconv.FormatInt(peerID, 10))
	params.Set("mark_conversation_as_read", "1")
	return c.call(ctx, "messages.markAsRead", params, nil)
}

// Message is a fetched message with its reply target, when any.
type Message struct {
	ID     int64    `json:"id"`
	FromID int64    `json:"from_id"`
	Text   string   `json:"text"`
	Reply  *Message `json:"reply_message"`
}

// GetMessage fetches one message by id. The long poll does not carry reply
// targets, so command handlers that act on a replied-to message use this.
func (c *Client) GetMessage(ctx context.Context, messageID int64) (*Message, error) {
	params := url.Values{}
	params.Set("message_ids", strconv.FormatInt(messageID, 10))
	var out struct {
		Items []Message `json:"items"`
	}
	if err := c.call(ctx, "messages.getById", params, &out); err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("vk messages.getById: message %d not found", messageID)
	}
	return &out.Items[0], nil
}

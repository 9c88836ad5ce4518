package schoologyapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an opaque schoology identifier, the api encodes some ids as json strings and
// others as json numbers so both are accepted.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		err := json.Unmarshal(data, &s)
		if err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	err := json.Unmarshal(data, &n)
	if err != nil {
		return fmt.Errorf("id: expected string or number, got %s", data)
	}
	*id = ID(n.String())
	return nil
}

// count is a number the api may also send as a json string.
type count int

func (c *count) UnmarshalJSON(data []byte) error {
	var id ID
	err := id.UnmarshalJSON(data)
	if err != nil {
		return err
	}
	if id == "" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(string(id))
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	*c = count(n)
	return nil
}

type User struct {
	UID         ID     `json:"uid"`
	NameDisplay string `json:"name_display"`
}

type Section struct {
	ID           ID     `json:"id"`
	CourseTitle  string `json:"course_title"`
	SectionTitle string `json:"section_title"`
}

// Assignment is a gradable unit, ID and Title are the only fields the export depends on.
type Assignment struct {
	ID        ID     `json:"id"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	SectionID ID     `json:"-"`
}

type sectionsResponse struct {
	Section []Section `json:"section"`
	Total   count     `json:"total"`
}

type assignmentsResponse struct {
	Assignment []Assignment `json:"assignment"`
	Total      count        `json:"total"`
}

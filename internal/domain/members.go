package domain

import (
	"errors"
)

var (
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberAlreadyExists = errors.New("member already exists")
)

type Member struct {
	Id          string `json:"id"`
	DisplayName string `json:"display_name"`
	RoomId      string `json:"room_id"`
}

// Members keeps join order.
type Members struct {
	list []Member
}

func (m Members) Length() int {
	return len(m.list)
}

func (m Members) AsList() []Member {
	list := make([]Member, len(m.list))
	copy(list, m.list)
	return list
}

func (m Members) Ids() []string {
	ids := make([]string, 0, len(m.list))
	for _, member := range m.list {
		ids = append(ids, member.Id)
	}

	return ids
}

func (m Members) GetById(id string) (Member, int, error) {
	for index, member := range m.list {
		if member.Id == id {
			return member, index, nil
		}
	}

	return Member{}, 0, ErrMemberNotFound
}

func (m *Members) Add(member Member) error {
	if _, _, err := m.GetById(member.Id); err == nil {
		return ErrMemberAlreadyExists
	}

	m.list = append(m.list, member)
	return nil
}

func (m *Members) RemoveById(id string) (Member, error) {
	member, index, err := m.GetById(id)
	if err != nil {
		return Member{}, err
	}

	m.list = append(m.list[:index], m.list[index+1:]...)
	return member, nil
}

package domain

import (
	"errors"
)

var ErrItemNotFound = errors.New("queue item not found")

type QueueItem struct {
	Id              string  `json:"id"`
	Title           string  `json:"title"`
	ThumbnailUrl    string  `json:"thumbnail_url"`
	DurationSeconds float64 `json:"duration_seconds"`
	SourceId        string  `json:"source_id"`
	AddedBy         string  `json:"added_by"`
}

type Queue struct {
	list []QueueItem
}

func (q Queue) AsList() []QueueItem {
	list := make([]QueueItem, len(q.list))
	copy(list, q.list)
	return list
}

func (q Queue) Length() int {
	return len(q.list)
}

func (q Queue) GetById(id string) (QueueItem, int, error) {
	for index, item := range q.list {
		if item.Id == id {
			return item, index, nil
		}
	}

	return QueueItem{}, 0, ErrItemNotFound
}

func (q *Queue) Push(item QueueItem) {
	q.list = append(q.list, item)
}

func (q *Queue) PopFront() (QueueItem, bool) {
	if len(q.list) == 0 {
		return QueueItem{}, false
	}

	item := q.list[0]
	q.list = q.list[1:]
	return item, true
}

func (q *Queue) RemoveById(id string) (QueueItem, error) {
	item, index, err := q.GetById(id)
	if err != nil {
		return QueueItem{}, err
	}

	q.list = append(q.list[:index], q.list[index+1:]...)
	return item, nil
}

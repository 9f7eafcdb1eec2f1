package pgrepo

import (
	"errors"

	"kcsatboard/biz/dal/pgdal"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("repo: record not found")

// mapNotFound 把 DAL 层的未找到转换成仓库层的错误，其他错误原样返回
func mapNotFound(err error) error {
	if errors.Is(err, pgdal.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

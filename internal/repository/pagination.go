package repository

import "gorm.io/gorm"

// maxRecordPageSize 单页记录上限
const maxRecordPageSize = 500

// applyPagination 按页截取记录，pageSize 为 0 时返回全部
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if pageSize > maxRecordPageSize {
		pageSize = maxRecordPageSize
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}

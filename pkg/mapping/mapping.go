package mapping

import "database/sql"

func ValueToSQLNullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func SQLNullStringToValue(value sql.NullString) string {
	if !value.Valid {
		return ""
	}
	return value.String
}

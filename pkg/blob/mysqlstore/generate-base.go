package mysqlstore

// generateSQLBase is the query list of SQL statements required to build the blob backend.
var generateSQLBase = []string{
	`
		CREATE TABLE IF NOT EXISTS blob_block (
			bb_blob char(32) CHARACTER SET ascii NOT NULL,
			bb_id bigint NOT NULL,
			bb_offset bigint NOT NULL,
			PRIMARY KEY (bb_blob, bb_id)
		) ENGINE=InnoDB DEFAULT CHARSET=ascii
	`,
	`
		CREATE TABLE IF NOT EXISTS blob_chunk (
			bc_blob char(32) CHARACTER SET ascii NOT NULL,
			bc_block bigint NOT NULL,
			bc_offset bigint NOT NULL,
			bc_size bigint NOT NULL,
			bc_payload mediumblob NOT NULL,
			PRIMARY KEY (bc_blob, bc_block, bc_offset)
		) ENGINE=InnoDB DEFAULT CHARSET=ascii
	`,
	`
		CREATE TABLE IF NOT EXISTS blob_meta (
			bm_blob char(32) CHARACTER SET ascii NOT NULL,
			bm_size bigint NOT NULL,
			bm_checksum char(32) CHARACTER SET ascii NOT NULL,
			PRIMARY KEY (bm_blob)
		) ENGINE=InnoDB DEFAULT CHARSET=ascii
	`,
}

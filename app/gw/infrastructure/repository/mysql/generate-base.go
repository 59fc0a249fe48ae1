package mysql

// generateSQLBase is the query list of SQL statements required to build the catalog.
// Object and upload keys are varbinary so listings order byte-wise.
var generateSQLBase = []string{
	`
		CREATE TABLE IF NOT EXISTS user (
			user_id int unsigned NOT NULL AUTO_INCREMENT,
			user_name varchar(128) CHARACTER SET ascii NOT NULL,
			user_access_key varchar(32) CHARACTER SET ascii NOT NULL,
			user_secret_key varchar(32) CHARACTER SET ascii NOT NULL,
			PRIMARY KEY (user_id),
			UNIQUE KEY (user_access_key)
		) ENGINE=InnoDB DEFAULT CHARSET=ascii
	`,
	`
		CREATE TABLE IF NOT EXISTS bucket (
			bk_id int unsigned NOT NULL AUTO_INCREMENT,
			bk_name varchar(64) CHARACTER SET ascii NOT NULL,
			bk_user int unsigned NOT NULL,
			bk_region varchar(32) CHARACTER SET ascii NOT NULL,
			bk_created datetime NOT NULL,
			PRIMARY KEY (bk_id),
			UNIQUE KEY (bk_name),
			FOREIGN KEY (bk_user) REFERENCES user (user_id)
		) ENGINE=InnoDB DEFAULT CHARSET=ascii
	`,
	`
		CREATE TABLE IF NOT EXISTS object (
			ob_id bigint unsigned NOT NULL AUTO_INCREMENT,
			ob_bucket int unsigned NOT NULL,
			ob_key varbinary(1024) NOT NULL,
			ob_size bigint NOT NULL,
			ob_etag char(32) CHARACTER SET ascii NOT NULL,
			ob_modified datetime NOT NULL,
			PRIMARY KEY (ob_id),
			UNIQUE KEY (ob_bucket, ob_key),
			FOREIGN KEY (ob_bucket) REFERENCES bucket (bk_id)
		) ENGINE=InnoDB DEFAULT CHARSET=ascii
	`,
	`
		CREATE TABLE IF NOT EXISTS upload (
			up_id varchar(32) CHARACTER SET ascii NOT NULL,
			up_bucket int unsigned NOT NULL,
			up_key varbinary(1024) NOT NULL,
			up_user int unsigned NOT NULL,
			up_created datetime NOT NULL,
			PRIMARY KEY (up_id),
			FOREIGN KEY (up_bucket) REFERENCES bucket (bk_id),
			FOREIGN KEY (up_user) REFERENCES user (user_id)
		) ENGINE=InnoDB DEFAULT CHARSET=ascii
	`,
	`
		CREATE TABLE IF NOT EXISTS upload_part (
			pt_upload varchar(32) CHARACTER SET ascii NOT NULL,
			pt_number int unsigned NOT NULL,
			pt_size bigint NOT NULL,
			pt_etag char(32) CHARACTER SET ascii NOT NULL,
			pt_modified datetime NOT NULL,
			PRIMARY KEY (pt_upload, pt_number),
			FOREIGN KEY (pt_upload) REFERENCES upload (up_id)
		) ENGINE=InnoDB DEFAULT CHARSET=ascii
	`,
}

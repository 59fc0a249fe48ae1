package cli

import (
	"fmt"
	"log"

	"github.com/gitter-badger/pithos/app/gw/domain/model/user"
	"github.com/gitter-badger/pithos/app/gw/infrastructure/repository/mysql"
	"github.com/gitter-badger/pithos/pkg/security"
	"github.com/gitter-badger/pithos/pkg/util/config"
	"github.com/spf13/cobra"
)

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "add user [user name]",
	Long:  "add user [user name]",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return fmt.Errorf("requires an user name")
		}
		if len(args) > 1 {
			return fmt.Errorf("requires only one user name")
		}
		return nil
	},
	Run: userAddRun,
}

// userAddRun provisions a new api key pair directly in the catalog
// and prints the generated keys.
func userAddRun(cmd *cobra.Command, args []string) {
	store, err := mysql.New(&gwcfg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	ak := security.NewAPIKey()
	u := &user.User{
		Name:   user.Name(args[0]),
		Access: user.Key(ak.AccessKey()),
		Secret: user.Key(ak.SecretKey()),
	}

	if err := mysql.NewUserRepository(store).Save(u); err != nil {
		log.Fatal(err)
	}

	fmt.Println(u.Access)
	fmt.Println(u.Secret)
}

func init() {
	userAddCmd.Flags().StringVarP(&gwcfg.MySQLUser, "mysql-user", "", config.Get("gw.mysql_user"), "user id to mysql server")
	userAddCmd.Flags().StringVarP(&gwcfg.MySQLPassword, "mysql-password", "", config.Get("gw.mysql_password"), "password of mysql user")
	userAddCmd.Flags().StringVarP(&gwcfg.MySQLHost, "mysql-host", "", config.Get("gw.mysql_host"), "host address of mysql server")
	userAddCmd.Flags().StringVarP(&gwcfg.MySQLPort, "mysql-port", "", config.Get("gw.mysql_port"), "port number of mysql server")
	userAddCmd.Flags().StringVarP(&gwcfg.MySQLDatabase, "mysql-database", "", config.Get("gw.mysql_database"), "mysql schema name")
}

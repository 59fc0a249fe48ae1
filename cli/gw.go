package cli

import (
	"log"

	"github.com/gitter-badger/pithos/app/gw"
	"github.com/gitter-badger/pithos/pkg/util/config"
	"github.com/spf13/cobra"
)

var (
	gwcfg config.Gw
)

var gwCmd = &cobra.Command{
	Use:   "gw",
	Short: "gateway control commands",
	Long:  "gateway control commands",
	Run:   gwRun,
}

func gwRun(cmd *cobra.Command, args []string) {
	if err := gw.Bootstrap(gwcfg); err != nil {
		log.Fatal(err)
	}
}

func init() {
	gwCmd.Flags().StringVarP(&gwcfg.ServerAddr, "bind", "b", config.Get("gw.addr"), "address to which the gateway will bind")
	gwCmd.Flags().StringVarP(&gwcfg.ServerPort, "port", "p", config.Get("gw.port"), "port on which the gateway will listen")
	gwCmd.Flags().StringVarP(&gwcfg.AdminPort, "admin-port", "", config.Get("gw.admin_port"), "port of the health and metrics endpoints")
	gwCmd.Flags().StringVarP(&gwcfg.MaxConns, "max-conns", "", config.Get("gw.max_conns"), "limit of simultaneous client connections")
	gwCmd.Flags().StringVarP(&gwcfg.Region, "region", "", config.Get("gw.region"), "name of the region this gateway serves")
	gwCmd.Flags().StringVarP(&gwcfg.LogLocation, "log", "l", config.Get("gw.log_location"), "log location of the gateway will print out")

	gwCmd.Flags().StringVarP(&gwcfg.Store, "store", "", config.Get("gw.store"), "blob store backend; mem or mysql")
	gwCmd.Flags().StringVarP(&gwcfg.BlockSize, "block-size", "", config.Get("gw.block_size"), "byte capacity of one block")
	gwCmd.Flags().StringVarP(&gwcfg.ChunkSize, "chunk-size", "", config.Get("gw.chunk_size"), "write ceiling of one chunk in bytes")

	gwCmd.Flags().StringVarP(&gwcfg.MySQLUser, "mysql-user", "", config.Get("gw.mysql_user"), "user id to mysql server")
	gwCmd.Flags().StringVarP(&gwcfg.MySQLPassword, "mysql-password", "", config.Get("gw.mysql_password"), "password of mysql user")
	gwCmd.Flags().StringVarP(&gwcfg.MySQLHost, "mysql-host", "", config.Get("gw.mysql_host"), "host address of mysql server")
	gwCmd.Flags().StringVarP(&gwcfg.MySQLPort, "mysql-port", "", config.Get("gw.mysql_port"), "port number of mysql server")
	gwCmd.Flags().StringVarP(&gwcfg.MySQLDatabase, "mysql-database", "", config.Get("gw.mysql_database"), "mysql schema name")

	gwCmd.Flags().StringVarP(&gwcfg.UseHTTPS, "https", "", config.Get("gw.use_https"), "serve client requests over https")
	gwCmd.Flags().StringVarP(&gwcfg.Security.CertsDir, "secure-certs-dir", "", config.Get("security.certs_dir"), "directory path of secure configuration files")
	gwCmd.Flags().StringVarP(&gwcfg.Security.RootCAPem, "secure-rootca-pem", "", config.Get("security.rootca_pem"), "file name of rootCA.pem")
	gwCmd.Flags().StringVarP(&gwcfg.Security.ServerKey, "secure-server-key", "", config.Get("security.server_key"), "file name of server key")
	gwCmd.Flags().StringVarP(&gwcfg.Security.ServerCrt, "secure-server-crt", "", config.Get("security.server_crt"), "file name of server crt")
}

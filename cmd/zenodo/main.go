package main

// The zenodo tool drives the deposition workflow from the command line.

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"text/tabwriter"

	"github.com/BurntSushi/toml"

	"github.com/man74cio/zenodopy/zenodo"
)

// various command line flags, with default values

var (
	sandbox    = flag.Bool("sandbox", false, "use the Zenodo sandbox server")
	token      = flag.String("token", "", "access token, overrides the token file")
	configFile = flag.String("config", "", "settings file (default ~/.zenodo.toml)")
	fileroot   = flag.String("root", "", "directory to download into")
	numworkers = flag.Int("n", 2, "number of transfer workers")
	format     = flag.String("format", "zip", "archive format for uploaddir (zip or tar)")
	getfiles   = flag.Bool("get", false, "also download the files a DOI resolves to")
	verbose    = flag.Bool("v", false, "display more information")
	usage      = `
zenodo [flags] <command> <command arguments>

Possible commands:

    ls                          list depositions, one row per concept
    files                       list the files of the current deposition
    create <title>              create a new deposition
    set <id>                    select the current deposition
    unset                       clear the current deposition
    upload <id> <file...>       upload files into a deposition
    uploaddir <id> <directory>  archive a directory and upload it
    download <id> [file...]     download files, all of them by default
    meta <id>                   print a deposition's metadata
    publish <id>                publish a deposition
    newversion <id>             open a new draft version
    delete <id>                 delete an unpublished deposition
    doi <doi>                   resolve a DOI to its file URLs
    communities [query]         search communities

The set and unset commands rewrite the settings file.
`
)

// settings mirror the TOML settings file. Command line flags win over
// values from the file.
type settings struct {
	Sandbox bool   `toml:"sandbox"`
	Token   string `toml:"token"`
	Root    string `toml:"root"`
	Project int    `toml:"project"`
}

func main() {
	flag.Parse()

	cfgPath := *configFile
	if cfgPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfgPath = filepath.Join(home, ".zenodo.toml")
		}
	}
	var cfg settings
	if cfgPath != "" {
		// a missing settings file is fine
		toml.DecodeFile(cfgPath, &cfg)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sandbox":
			cfg.Sandbox = *sandbox
		case "token":
			cfg.Token = *token
		case "root":
			cfg.Root = *fileroot
		}
	})

	args := flag.Args()
	if len(args) == 0 {
		fmt.Println(usage)
		return
	}

	c := newClient(cfg)

	switch args[0] {
	case "ls":
		dols(c)
	case "files":
		if cfg.Project == 0 {
			fmt.Println("No deposition is selected. Use: zenodo set <id>")
			return
		}
		dofiles(c, cfg.Project)
	case "create":
		if len(args) != 2 {
			fmt.Println("Usage: zenodo <flags> create <title>")
			return
		}
		docreate(c, args[1])
	case "set":
		if len(args) != 2 {
			fmt.Println("Usage: zenodo <flags> set <id>")
			return
		}
		doset(c, cfgPath, cfg, atoi(args[1]))
	case "unset":
		cfg.Project = 0
		if err := saveSettings(cfgPath, cfg); err != nil {
			fmt.Println(err)
		}
	case "upload":
		if len(args) < 3 {
			fmt.Println("Usage: zenodo <flags> upload <id> <file...>")
			return
		}
		doupload(c, atoi(args[1]), args[2:])
	case "uploaddir":
		if len(args) != 3 {
			fmt.Println("Usage: zenodo <flags> uploaddir <id> <directory>")
			return
		}
		douploaddir(c, atoi(args[1]), args[2])
	case "download":
		if len(args) < 2 {
			fmt.Println("Usage: zenodo <flags> download <id> [file...]")
			return
		}
		dodownload(c, atoi(args[1]), args[2:], cfg.Root)
	case "meta":
		if len(args) != 2 {
			fmt.Println("Usage: zenodo <flags> meta <id>")
			return
		}
		dometa(c, atoi(args[1]))
	case "publish":
		if len(args) != 2 {
			fmt.Println("Usage: zenodo <flags> publish <id>")
			return
		}
		dopublish(c, atoi(args[1]))
	case "newversion":
		if len(args) != 2 {
			fmt.Println("Usage: zenodo <flags> newversion <id>")
			return
		}
		donewversion(c, atoi(args[1]))
	case "delete":
		if len(args) != 2 {
			fmt.Println("Usage: zenodo <flags> delete <id>")
			return
		}
		if err := c.DeleteProject(atoi(args[1])); err != nil {
			fmt.Println(err)
		}
	case "doi":
		if len(args) != 2 {
			fmt.Println("Usage: zenodo <flags> doi <doi>")
			return
		}
		dodoi(c, args[1], cfg.Root)
	case "communities":
		query := ""
		if len(args) > 1 {
			query = args[1]
		}
		docommunities(c, query)
	default:
		fmt.Println(usage)
	}
}

func newClient(cfg settings) *zenodo.Client {
	if cfg.Token != "" {
		return zenodo.NewWithTokenSource(cfg.Sandbox, zenodo.StaticToken(cfg.Token))
	}
	return zenodo.New(cfg.Sandbox, "")
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		fmt.Printf("%s is not a deposition id\n", s)
		os.Exit(1)
	}
	return n
}

func saveSettings(path string, cfg settings) error {
	if path == "" {
		return fmt.Errorf("no settings file to write, pass -config")
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return toml.NewEncoder(out).Encode(cfg)
}

func dols(c *zenodo.Client) {
	deps, err := c.AllDepositions()
	if err != nil {
		fmt.Println(err)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 5, 1, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tCONCEPT\tPUBLISHED\tTITLE")
	for _, dep := range deps {
		fmt.Fprintf(w, "%d\t%s\t%v\t%s\n", dep.ID, dep.ConceptRecID, dep.Submitted, dep.Title)
	}
	w.Flush()
}

func dofiles(c *zenodo.Client, id int) {
	files, err := c.DepositionFiles(id)
	if err != nil {
		fmt.Println(err)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 5, 1, 3, ' ', 0)
	fmt.Fprintln(w, "SIZE\tCHECKSUM\tFILENAME")
	for _, f := range files {
		fmt.Fprintf(w, "%d\t%s\t%s\n", f.Filesize, f.Checksum, f.Filename)
	}
	w.Flush()
}

func docreate(c *zenodo.Client, title string) {
	dep, err := c.CreateProject(title, "", "")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("Created deposition %d (concept %s)\n", dep.ID, dep.ConceptRecID)
	fmt.Printf("Bucket %s\n", dep.Links.Bucket)
}

func doset(c *zenodo.Client, cfgPath string, cfg settings, id int) {
	if err := c.SetProject(id); err != nil {
		fmt.Println(err)
		return
	}
	cfg.Project = id
	if err := saveSettings(cfgPath, cfg); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("Current deposition is %d %q\n", id, c.Title())
}

func doupload(c *zenodo.Client, id int, paths []string) {
	if err := c.SetProject(id); err != nil {
		fmt.Println(err)
		return
	}

	filesToSend := make(chan string)
	var sendFileDone sync.WaitGroup

	// set up our barrier, that will wait for all the files to be uploaded
	sendFileDone.Add(*numworkers)

	for cnt := 0; cnt < *numworkers; cnt++ {
		go func() {
			for name := range filesToSend {
				if *verbose {
					fmt.Printf("Uploading %s\n", name)
				}
				if err := c.UploadFile(name, "", false); err != nil {
					fmt.Printf("%s: %s\n", name, err)
				}
			}
			sendFileDone.Done()
		}()
	}

	for _, name := range paths {
		filesToSend <- name
	}
	close(filesToSend)

	// wait for all files to be uploaded
	sendFileDone.Wait()
}

func douploaddir(c *zenodo.Client, id int, dir string) {
	if err := c.SetProject(id); err != nil {
		fmt.Println(err)
		return
	}
	var err error
	switch *format {
	case "zip":
		err = c.UploadZip(dir, "", false)
	case "tar":
		err = c.UploadTar(dir, "", false)
	default:
		err = fmt.Errorf("unknown archive format %s, use zip or tar", *format)
	}
	if err != nil {
		fmt.Println(err)
	}
}

func dodownload(c *zenodo.Client, id int, files []string, root string) {
	if err := c.SetProject(id); err != nil {
		fmt.Println(err)
		return
	}

	// no files asked for means all of them
	if len(files) == 0 {
		all, err := c.ListFiles()
		if err != nil {
			fmt.Println(err)
			return
		}
		for _, f := range all {
			files = append(files, f.Filename)
		}
	}

	filesToGet := make(chan string)
	var getFileDone sync.WaitGroup
	getFileDone.Add(*numworkers)

	for cnt := 0; cnt < *numworkers; cnt++ {
		go func() {
			for name := range filesToGet {
				if *verbose {
					fmt.Printf("Downloading %s\n", name)
				}
				if err := c.DownloadFile(name, root); err != nil {
					fmt.Printf("%s: %s\n", name, err)
				}
			}
			getFileDone.Done()
		}()
	}

	for _, name := range files {
		filesToGet <- name
	}
	close(filesToGet)
	getFileDone.Wait()
}

func dometa(c *zenodo.Client, id int) {
	meta, err := c.GetMetadata(id)
	if err != nil {
		fmt.Println(err)
		return
	}
	var keys []string
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w := tabwriter.NewWriter(os.Stdout, 5, 1, 3, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s:\t%v\n", k, meta[k])
	}
	w.Flush()
}

func dopublish(c *zenodo.Client, id int) {
	if err := c.SetProject(id); err != nil {
		fmt.Println(err)
		return
	}
	dep, err := c.Publish()
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("Published deposition %d as %s\n", dep.ID, dep.DOI)
}

func donewversion(c *zenodo.Client, id int) {
	if err := c.SetProject(id); err != nil {
		fmt.Println(err)
		return
	}
	draft, err := c.NewVersion()
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("Draft version is deposition %d\n", draft.ID)
}

func dodoi(c *zenodo.Client, doi string, root string) {
	urls, err := c.URLsFromDOI(doi)
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, u := range urls {
		fmt.Println(u)
	}
	if !*getfiles {
		return
	}
	for _, u := range urls {
		if err := fetch(u, root); err != nil {
			fmt.Printf("%s: %s\n", u, err)
		}
	}
}

// fetch downloads one public record file into root.
func fetch(rawurl, root string) error {
	resp, err := http.Get(rawurl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("received status %d", resp.StatusCode)
	}
	out, err := os.Create(filepath.Join(root, path.Base(rawurl)))
	if err != nil {
		return err
	}
	_, err = io.Copy(out, resp.Body)
	cerr := out.Close()
	if err == nil {
		err = cerr
	}
	return err
}

func docommunities(c *zenodo.Client, query string) {
	communities, err := c.SearchCommunities(query)
	if err != nil {
		fmt.Println(err)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 5, 1, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE")
	for _, comm := range communities {
		fmt.Fprintf(w, "%s\t%s\n", comm.ID, comm.Title)
	}
	w.Flush()
}
